// Package restriction stores externally imposed access blocks and answers
// access.RestrictionQuery. A block may carry an expiry after which it no
// longer applies.
package restriction
