package domain

// Gender of an animal.
type Gender string

// Supported genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// ObtainedMethod records how the animal joined the herd.
type ObtainedMethod string

// Supported obtained methods.
const (
	ObtainedBornOnFarm ObtainedMethod = "bornOnFarm"
	ObtainedPurchase   ObtainedMethod = "purchase"
	ObtainedOther      ObtainedMethod = "other"
)

// Valid reports whether m is a known obtained method.
func (m ObtainedMethod) Valid() bool {
	switch m {
	case ObtainedBornOnFarm, ObtainedPurchase, ObtainedOther:
		return true
	}
	return false
}

// Breed of an animal. The empty value means not recorded.
type Breed string

// Supported breeds.
const (
	BreedJersey           Breed = "jersey"
	BreedHolsteinFriesian Breed = "holsteinFriesian"
	BreedSahiwal          Breed = "sahiwal"
	BreedGir              Breed = "gir"
	BreedRedSindhi        Breed = "redSindhi"
	BreedTharparkar       Breed = "tharparkar"
	BreedOther            Breed = "other"
)

// Valid reports whether b is empty or a known breed.
func (b Breed) Valid() bool {
	switch b {
	case "", BreedJersey, BreedHolsteinFriesian, BreedSahiwal, BreedGir, BreedRedSindhi, BreedTharparkar, BreedOther:
		return true
	}
	return false
}

// Stage is the life stage of an animal. The empty value means not recorded.
type Stage string

// Supported life stages.
const (
	StageCalf   Stage = "calf"
	StageHeifer Stage = "heifer"
	StageCow    Stage = "cow"
)

// Valid reports whether s is empty or a known stage.
func (s Stage) Valid() bool {
	switch s {
	case "", StageCalf, StageHeifer, StageCow:
		return true
	}
	return false
}

// ReproStatus is the compound reproductive and lactation state of an animal.
type ReproStatus string

// Supported reproductive statuses.
const (
	StatusPregnant                   ReproStatus = "pregnant"
	StatusInseminated                ReproStatus = "inseminated"
	StatusLactating                  ReproStatus = "lactating"
	StatusNonLactating               ReproStatus = "nonLactating"
	StatusInseminatedAndLactating    ReproStatus = "inseminatedAndLactating"
	StatusInseminatedAndNonLactating ReproStatus = "inseminatedAndNonLactating"
	StatusLactatingAndPregnant       ReproStatus = "lactatingAndPregnant"
	StatusNonLactatingAndPregnant    ReproStatus = "nonLactatingAndPregnant"
	StatusOther                      ReproStatus = "other"
)

// Valid reports whether s is empty or a known status.
func (s ReproStatus) Valid() bool {
	switch s {
	case "", StatusPregnant, StatusInseminated, StatusLactating, StatusNonLactating,
		StatusInseminatedAndLactating, StatusInseminatedAndNonLactating,
		StatusLactatingAndPregnant, StatusNonLactatingAndPregnant, StatusOther:
		return true
	}
	return false
}

// InseminationRelated reports whether an insemination date is meaningful for s.
func (s ReproStatus) InseminationRelated() bool {
	switch s {
	case StatusPregnant, StatusInseminated, StatusInseminatedAndLactating,
		StatusInseminatedAndNonLactating, StatusLactatingAndPregnant, StatusNonLactatingAndPregnant:
		return true
	}
	return false
}

// StatusGroup is an overlapping family of statuses. A compound status such as
// lactatingAndPregnant belongs to more than one group.
type StatusGroup string

// Status groups used by herd statistics and list filters.
const (
	GroupPregnant     StatusGroup = "pregnant"
	GroupLactating    StatusGroup = "lactating"
	GroupInseminated  StatusGroup = "inseminated"
	GroupNonLactating StatusGroup = "nonLactating"
)

var statusGroups = map[StatusGroup][]ReproStatus{
	GroupPregnant:     {StatusPregnant, StatusLactatingAndPregnant, StatusNonLactatingAndPregnant},
	GroupLactating:    {StatusLactating, StatusInseminatedAndLactating, StatusLactatingAndPregnant},
	GroupInseminated:  {StatusInseminated, StatusInseminatedAndLactating, StatusInseminatedAndNonLactating},
	GroupNonLactating: {StatusNonLactating, StatusNonLactatingAndPregnant, StatusInseminatedAndNonLactating},
}

// Valid reports whether g is a known group.
func (g StatusGroup) Valid() bool {
	_, ok := statusGroups[g]
	return ok
}

// Members returns the statuses that make up the group.
func (g StatusGroup) Members() []ReproStatus {
	return append([]ReproStatus(nil), statusGroups[g]...)
}

// InGroup reports whether s belongs to g.
func (s ReproStatus) InGroup(g StatusGroup) bool {
	for _, member := range statusGroups[g] {
		if member == s {
			return true
		}
	}
	return false
}

// Disposal tracks whether an animal is still on the farm.
type Disposal string

// Supported disposal states. Sold and died are terminal.
const (
	DisposalAlive Disposal = "alive"
	DisposalSold  Disposal = "sold"
	DisposalDied  Disposal = "died"
)

// Valid reports whether d is a known disposal state.
func (d Disposal) Valid() bool {
	return d == DisposalAlive || d == DisposalSold || d == DisposalDied
}

// Terminal reports whether d removes the animal from the herd.
func (d Disposal) Terminal() bool {
	return d == DisposalSold || d == DisposalDied
}

// EventStatus is the completion state of an event.
type EventStatus string

// Supported event statuses.
const (
	EventPending   EventStatus = "pending"
	EventCompleted EventStatus = "completed"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	return s == EventPending || s == EventCompleted
}

// Common event types referenced by reminders.
const (
	EventTypeDelivery     = "delivery"
	EventTypeInsemination = "insemination"
)

// TransactionType distinguishes income from expense.
type TransactionType string

// Supported transaction types.
const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// DefaultCategory is the catch-all category for t.
func (t TransactionType) DefaultCategory() Category {
	if t == TransactionIncome {
		return CategoryOtherIncome
	}
	return CategoryOtherExpenses
}

// Category classifies a transaction. The allowed set depends on the type.
type Category string

// Income categories.
const (
	CategoryMilkSales   Category = "milkSales"
	CategoryCattleSales Category = "cattleSales"
	CategoryManureSales Category = "manureSales"
	CategoryOtherIncome Category = "otherIncome"
)

// Expense categories.
const (
	CategoryFeed           Category = "feed"
	CategoryVeterinary     Category = "veterinary"
	CategoryLabor          Category = "labor"
	CategoryEquipment      Category = "equipment"
	CategoryUtilities      Category = "utilities"
	CategoryOtherExpenses  Category = "otherExpenses"
	CategoryCattlePurchase Category = "cattle_purchase"
)

var categoriesByType = map[TransactionType][]Category{
	TransactionIncome:  {CategoryMilkSales, CategoryCattleSales, CategoryManureSales, CategoryOtherIncome},
	TransactionExpense: {CategoryFeed, CategoryVeterinary, CategoryLabor, CategoryEquipment, CategoryUtilities, CategoryOtherExpenses, CategoryCattlePurchase},
}

// Categories lists the categories allowed for t.
func (t TransactionType) Categories() []Category {
	return append([]Category(nil), categoriesByType[t]...)
}

// ValidFor reports whether c may be used with transaction type t.
func (c Category) ValidFor(t TransactionType) bool {
	for _, allowed := range categoriesByType[t] {
		if allowed == c {
			return true
		}
	}
	return false
}

// HealthStatus is the state of an illness episode.
type HealthStatus string

// Supported health statuses.
const (
	HealthActive    HealthStatus = "active"
	HealthRecovered HealthStatus = "recovered"
)

// Valid reports whether s is a known health status.
func (s HealthStatus) Valid() bool {
	return s == HealthActive || s == HealthRecovered
}
