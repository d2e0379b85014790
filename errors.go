package pgnest

import "errors"

// Sentinel errors for registration, lifecycle and transaction failures.
//
// Use the Is*Err helper functions to check for specific errors. Filter and
// descriptor errors are defined next to their packages (filter.ErrInvalidFilter,
// query.ErrInvalidDescriptor) and pass through wrapped.
var (
	// ErrUnknownModel is returned when a model name or table is not registered.
	ErrUnknownModel = errors.New("pgnest: unknown model")

	// ErrDuplicateModel is returned when a model name or table is defined twice.
	ErrDuplicateModel = errors.New("pgnest: duplicate model")

	// ErrInvalidDefinition is returned for incomplete model or relation
	// definitions: empty names, unknown field types, missing keys.
	ErrInvalidDefinition = errors.New("pgnest: invalid definition")

	// ErrRegistrySealed is returned when a model or relation is declared after
	// registration has completed.
	ErrRegistrySealed = errors.New("pgnest: registry sealed")

	// ErrUnknownRelation is returned when a relation name is not declared on a model.
	ErrUnknownRelation = errors.New("pgnest: unknown relation")

	// ErrRelationCycle is returned when nested relation names lead back to a
	// relation that is already being resolved.
	ErrRelationCycle = errors.New("pgnest: relation cycle")

	// ErrUnknownFunction is returned by Model.Call for undeclared functions.
	ErrUnknownFunction = errors.New("pgnest: unknown function")

	// ErrUnknownColumn is returned when an Instance is given a column its
	// model does not declare.
	ErrUnknownColumn = errors.New("pgnest: unknown column")

	// ErrInvalidValue is returned when a column value cannot be encoded for
	// binding, such as a slice holding a channel.
	ErrInvalidValue = errors.New("pgnest: invalid column value")

	// ErrMissingIdentity is returned by Instance.Delete when the identity
	// column is not set.
	ErrMissingIdentity = errors.New("pgnest: identity column not set")

	// ErrTransactionNotBegun is returned when committing or rolling back a
	// transaction that never began.
	ErrTransactionNotBegun = errors.New("pgnest: transaction not begun")

	// ErrTransactionSettled is returned when using a transaction that has
	// already committed or rolled back.
	ErrTransactionSettled = errors.New("pgnest: transaction already settled")
)

// IsUnknownModelErr returns true if err is or wraps ErrUnknownModel.
func IsUnknownModelErr(err error) bool {
	return errors.Is(err, ErrUnknownModel)
}

// IsUnknownRelationErr returns true if err is or wraps ErrUnknownRelation.
func IsUnknownRelationErr(err error) bool {
	return errors.Is(err, ErrUnknownRelation)
}

// IsMissingIdentityErr returns true if err is or wraps ErrMissingIdentity.
func IsMissingIdentityErr(err error) bool {
	return errors.Is(err, ErrMissingIdentity)
}

// IsTransactionSettledErr returns true if err is or wraps ErrTransactionSettled.
func IsTransactionSettledErr(err error) bool {
	return errors.Is(err, ErrTransactionSettled)
}

// QueryError is returned when the executor rejects a statement. It carries
// the SQL text that failed.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return e.Err.Error() + "\n" + e.SQL
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryErr returns true if err is or wraps a *QueryError.
func IsQueryErr(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
