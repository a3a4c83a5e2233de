// Package validation checks the small set of user inputs the token engine
// accepts: registration, login and password change.
//
// A [RuleSet] is immutable once built and may be shared between goroutines.
// Every call to [RuleSet.Validate] returns a new [Result], so no state leaks
// between requests. Field rules compile to go-playground/validator tags and
// are evaluated with [validator.Validate.Var].
package validation
