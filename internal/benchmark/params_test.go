package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteParameters(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "named parameter",
			in:   "SELECT * FROM Orders WHERE CustomerId = @custId",
			want: "SELECT * FROM Orders WHERE CustomerId = 1",
		},
		{
			name: "positional parameter",
			in:   "SELECT * FROM Orders WHERE CustomerId = ?",
			want: "SELECT * FROM Orders WHERE CustomerId = 1",
		},
		{
			name: "like named parameter gets quoted dummy",
			in:   "SELECT Name FROM Customers WHERE Name LIKE @pattern",
			want: "SELECT Name FROM Customers WHERE Name LIKE '1'",
		},
		{
			name: "like positional parameter gets quoted dummy",
			in:   "SELECT Name FROM Customers WHERE Name LIKE ?",
			want: "SELECT Name FROM Customers WHERE Name LIKE '1'",
		},
		{
			name: "system variable untouched",
			in:   "SELECT @@VERSION",
			want: "SELECT @@VERSION",
		},
		{
			name: "mixed parameters",
			in:   "SELECT * FROM Orders WHERE Id = @id AND Note LIKE @note AND Qty > ?",
			want: "SELECT * FROM Orders WHERE Id = 1 AND Note LIKE '1' AND Qty > 1",
		},
		{
			name: "no parameters",
			in:   "SELECT 1",
			want: "SELECT 1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SubstituteParameters(tc.in))
		})
	}
}
