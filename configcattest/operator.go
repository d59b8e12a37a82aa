package configcattest

import (
	configcat "github.com/configcat/go-sdk/v9"
)

// Operator defines a comparison operator.
type Operator configcat.Comparator

const (
	OpOneOf                       = Operator(configcat.OpOneOf)
	OpNotOneOf                    = Operator(configcat.OpNotOneOf)
	OpContains                    = Operator(configcat.OpContains)
	OpNotContains                 = Operator(configcat.OpNotContains)
	OpOneOfSemver                 = Operator(configcat.OpOneOfSemver)
	OpNotOneOfSemver              = Operator(configcat.OpNotOneOfSemver)
	OpLessSemver                  = Operator(configcat.OpLessSemver)
	OpLessEqSemver                = Operator(configcat.OpLessEqSemver)
	OpGreaterSemver               = Operator(configcat.OpGreaterSemver)
	OpGreaterEqSemver             = Operator(configcat.OpGreaterEqSemver)
	OpEqNum                       = Operator(configcat.OpEqNum)
	OpNotEqNum                    = Operator(configcat.OpNotEqNum)
	OpLessNum                     = Operator(configcat.OpLessNum)
	OpLessEqNum                   = Operator(configcat.OpLessEqNum)
	OpGreaterNum                  = Operator(configcat.OpGreaterNum)
	OpGreaterEqNum                = Operator(configcat.OpGreaterEqNum)
	OpOneOfHashed                 = Operator(configcat.OpOneOfHashed)
	OpNotOneOfHashed              = Operator(configcat.OpNotOneOfHashed)
	OpBeforeDateTime              = Operator(configcat.OpBeforeDateTime)
	OpAfterDateTime               = Operator(configcat.OpAfterDateTime)
	OpEqHashed                    = Operator(configcat.OpEqHashed)
	OpNotEqHashed                 = Operator(configcat.OpNotEqHashed)
	OpStartsWithAnyOfHashed       = Operator(configcat.OpStartsWithAnyOfHashed)
	OpNotStartsWithAnyOfHashed    = Operator(configcat.OpNotStartsWithAnyOfHashed)
	OpEndsWithAnyOfHashed         = Operator(configcat.OpEndsWithAnyOfHashed)
	OpNotEndsWithAnyOfHashed      = Operator(configcat.OpNotEndsWithAnyOfHashed)
	OpArrayContainsAnyOfHashed    = Operator(configcat.OpArrayContainsAnyOfHashed)
	OpArrayNotContainsAnyOfHashed = Operator(configcat.OpArrayNotContainsAnyOfHashed)
	OpEq                          = Operator(configcat.OpEq)
	OpNotEq                       = Operator(configcat.OpNotEq)
	OpStartsWithAnyOf             = Operator(configcat.OpStartsWithAnyOf)
	OpNotStartsWithAnyOf          = Operator(configcat.OpNotStartsWithAnyOf)
	OpEndsWithAnyOf               = Operator(configcat.OpEndsWithAnyOf)
	OpNotEndsWithAnyOf            = Operator(configcat.OpNotEndsWithAnyOf)
	OpArrayContainsAnyOf          = Operator(configcat.OpArrayContainsAnyOf)
	OpArrayNotContainsAnyOf       = Operator(configcat.OpArrayNotContainsAnyOf)
)

func (op Operator) String() string {
	return configcat.Comparator(op).String()
}

func (op Operator) valid() bool {
	return configcat.Comparator(op).IsValid()
}
