package models

type FundCategory string

const (
	FundGeneral       FundCategory = "GENERAL"
	FundTithes        FundCategory = "TITHES"
	FundOfferings     FundCategory = "OFFERINGS"
	FundConstruction  FundCategory = "CONSTRUCTION"
	FundMissions      FundCategory = "MISSIONS"
	FundSocial        FundCategory = "SOCIAL"
	FundYouth         FundCategory = "YOUTH"
	FundEducation     FundCategory = "EDUCATION"
	FundMaintenance   FundCategory = "MAINTENANCE"
	FundSpecialEvents FundCategory = "SPECIAL_EVENTS"
)

// FundCategories lists every category provisioned for a new organization.
var FundCategories = []FundCategory{
	FundGeneral,
	FundTithes,
	FundOfferings,
	FundConstruction,
	FundMissions,
	FundSocial,
	FundYouth,
	FundEducation,
	FundMaintenance,
	FundSpecialEvents,
}

func (c FundCategory) Valid() bool {
	for _, known := range FundCategories {
		if c == known {
			return true
		}
	}
	return false
}

type ExpenseCategory string

const (
	ExpenseUtilities    ExpenseCategory = "UTILITIES"
	ExpenseSalaries     ExpenseCategory = "SALARIES"
	ExpenseMaintenance  ExpenseCategory = "MAINTENANCE"
	ExpenseSupplies     ExpenseCategory = "SUPPLIES"
	ExpenseEvents       ExpenseCategory = "EVENTS"
	ExpenseMissions     ExpenseCategory = "MISSIONS"
	ExpenseConstruction ExpenseCategory = "CONSTRUCTION"
	ExpenseTransport    ExpenseCategory = "TRANSPORT"
	ExpenseServices     ExpenseCategory = "SERVICES"
	ExpenseOther        ExpenseCategory = "OTHER"
)

var ExpenseCategories = []ExpenseCategory{
	ExpenseUtilities,
	ExpenseSalaries,
	ExpenseMaintenance,
	ExpenseSupplies,
	ExpenseEvents,
	ExpenseMissions,
	ExpenseConstruction,
	ExpenseTransport,
	ExpenseServices,
	ExpenseOther,
}

func (c ExpenseCategory) Valid() bool {
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// CreatorType distinguishes ordinary submitters from privileged ones whose
// requisitions skip one review hop.
type CreatorType string

const (
	CreatorStandard   CreatorType = "standard"
	CreatorPrivileged CreatorType = "privileged"
)

func (c CreatorType) Valid() bool {
	return c == CreatorStandard || c == CreatorPrivileged
}

type MovementType string

const (
	MovementCredit MovementType = "credit"
	MovementDebit  MovementType = "debit"
)

type ReferenceType string

const (
	ReferenceIncome      ReferenceType = "income"
	ReferenceRequisition ReferenceType = "requisition"
)
