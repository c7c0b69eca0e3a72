package engine

import (
	"testing"
	"time"

	"dbeval/generator"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRules(t *testing.T) {
	s, err := Lookup(Customers)
	require.NoError(t, err)
	now := time.Now()

	valid := generator.NewCustomer("CUST_999999", "Valid Customer", "valid@email.com", "+12345678901", now)
	assert.NoError(t, s.Validate(valid.Fields))

	cases := map[string]generator.Record{
		"bad pattern": generator.NewCustomer("INVALID_ID", "Invalid Customer", "invalid@email.com", "+12345678902", now),
		"bad length":  generator.NewCustomer("CUST_777777", "X", "short@email.com", "+12345678903", now),
		"bad format":  generator.NewCustomer("CUST_888888", "Bad Email", "not-an-email", "+12345678904", now),
	}
	for name, rec := range cases {
		err := s.Validate(rec.Fields)
		assert.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrRejected), name)
	}
}

func TestRequiredAndNumericRules(t *testing.T) {
	s, err := Lookup(OrderItems)
	require.NoError(t, err)

	item := generator.NewOrderItem("ORD_1", 1, "PROD_000001", 2, 10)
	assert.NoError(t, s.Validate(item.Fields))

	bad := generator.NewOrderItem("ORD_1", 2, "PROD_000001", -1, 10)
	assert.Error(t, s.Validate(bad.Fields))

	delete(item.Fields, "quantity")
	assert.Error(t, s.Validate(item.Fields))

	item.Fields["quantity"] = 1.5
	assert.Error(t, s.Validate(item.Fields))
}

func TestDependents(t *testing.T) {
	deps := Dependents(Orders)
	require.Len(t, deps, 2)
	assert.Equal(t, OrderItems, deps[0].Schema)
	assert.Equal(t, Payments, deps[1].Schema)
	assert.True(t, deps[0].Cascade)

	assert.Len(t, Dependents(Customers), 1)
	assert.Empty(t, Dependents(Payments))

	stock := Dependents(Inventory)
	require.Len(t, stock, 1)
	assert.False(t, stock[0].Cascade)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("widgets")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.True(t, Classify(nil, nil).Accepted())

	o := Classify(Reject("customer %s does not exist", "CUST_999997"), nil)
	assert.Equal(t, StatusRejected, o.Status)
	assert.Contains(t, o.Reason, "CUST_999997")

	o = Classify(errors.New("connection reset"), func(error) bool { return false })
	assert.Equal(t, StatusFatal, o.Status)

	o = Classify(errors.New("duplicate key"), func(error) bool { return true })
	assert.Equal(t, StatusRejected, o.Status)
}

func TestProvisionError(t *testing.T) {
	cause := errors.New("syntax error")
	err := errors.Wrap(&ProvisionError{Schema: Orders, Cause: cause}, "integrity phase")
	assert.True(t, IsProvisionError(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsProvisionError(cause))
}
