package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriteriaHash(t *testing.T) {
	t.Run("key order does not matter", func(t *testing.T) {
		a := Criteria{"account_type": "DS_IND", "status": "ACTIVE"}.Hash()
		b := Criteria{"status": "ACTIVE", "account_type": "DS_IND"}.Hash()
		assert.Equal(t, a, b)
	})

	t.Run("non-allowlisted keys never influence the hash", func(t *testing.T) {
		plain := Criteria{"account_type": "DS_IND"}.Hash()
		poisoned := Criteria{"account_type": "DS_IND", "postcode": "10115", "birth_year": "1979"}.Hash()
		assert.Equal(t, plain, poisoned)
	})

	t.Run("empty values are dropped", func(t *testing.T) {
		a := Criteria{"account_type": "DS_IND", "status": ""}.Hash()
		b := Criteria{"account_type": "DS_IND"}.Hash()
		assert.Equal(t, a, b)
	})

	t.Run("values are bound to their keys", func(t *testing.T) {
		a := Criteria{"account_type": "A", "status": "B"}.Hash()
		b := Criteria{"account_type": "B", "status": "A"}.Hash()
		assert.NotEqual(t, a, b)
	})

	t.Run("different values hash differently", func(t *testing.T) {
		a := Criteria{"account_type": "DS_IND"}.Hash()
		b := Criteria{"account_type": "DS_ORG"}.Hash()
		assert.NotEqual(t, a, b)
	})
}

func TestCriteriaSanitize(t *testing.T) {
	in := Criteria{
		"account_type":  "DS_IND",
		"status":        "ACTIVE",
		"postcode":      "10115",
		"created_after": "",
	}
	out := in.Sanitize()
	assert.Equal(t, Criteria{"account_type": "DS_IND", "status": "ACTIVE"}, out)
	// The input map is left untouched.
	assert.Contains(t, in, "postcode")
}
