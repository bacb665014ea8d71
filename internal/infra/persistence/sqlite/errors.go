package sqlite

import (
	"errors"
	"strings"

	"herdbook/pkg/domain"
)

var tables = map[domain.EntityType]string{
	domain.EntityCattle:       "cattle",
	domain.EntityEvent:        "events",
	domain.EntityMilkRecord:   "milk",
	domain.EntityTransaction:  "transactions",
	domain.EntityHealthRecord: "health",
}

// classify maps driver constraint failures onto the domain error taxonomy.
// Typed domain errors pass through untouched.
func classify(op string, entity domain.EntityType, err error, detail string) error {
	if err == nil {
		return nil
	}
	var (
		validation domain.ValidationError
		duplicate  domain.DuplicateKeyError
		notFound   domain.NotFoundError
		conflict   domain.ConflictError
		invalid    domain.InvalidStateError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &duplicate), errors.As(err, &notFound),
		errors.As(err, &conflict), errors.As(err, &invalid):
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: cattle.ear_tag_number"):
		return domain.DuplicateKeyError{Entity: domain.EntityCattle, Field: "earTagNumber", Value: detail}
	case strings.Contains(msg, "UNIQUE constraint failed: milk.date"):
		return domain.ConflictError{Entity: domain.EntityMilkRecord, Message: "a herd-wide record already exists for " + detail}
	case strings.Contains(msg, "UNIQUE constraint failed: "+tables[entity]+".id"):
		return domain.ConflictError{Entity: entity, Message: "id already in use"}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return domain.ValidationError{Entity: entity, Field: "cowId", Message: "references unknown cattle"}
	case strings.Contains(msg, "CHECK constraint failed"):
		return domain.ValidationError{Entity: entity, Field: "isPresent", Message: "absent cattle must be sold or died"}
	}
	return domain.Storage(op, err)
}
