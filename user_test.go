package configcat

import (
	"math"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestUserDataAttributes(t *testing.T) {
	c := qt.New(t)
	user := &UserData{
		Identifier: "id",
		Email:      "a@example.com",
		Custom: map[string]interface{}{
			"Plan":       "pro",
			"Identifier": "ignored",
		},
	}
	c.Assert(user.GetAttribute("Identifier"), qt.Equals, "id")
	c.Assert(user.GetAttribute("Email"), qt.Equals, "a@example.com")
	c.Assert(user.GetAttribute("Country"), qt.IsNil)
	c.Assert(user.GetAttribute("Plan"), qt.Equals, "pro")
	c.Assert(user.GetAttribute("plan"), qt.IsNil)
	c.Assert(user.String(), qt.Equals, `{"Email":"a@example.com","Identifier":"id","Plan":"pro"}`)

	var nilUser *UserData
	c.Assert(nilUser.GetAttribute("Identifier"), qt.IsNil)
	c.Assert(nilUser.String(), qt.Equals, "null")
}

func TestUserAttributes(t *testing.T) {
	c := qt.New(t)
	user := UserAttributes{"Identifier": "id", "Age": 21}
	c.Assert(user.GetAttribute("Age"), qt.Equals, 21)
	c.Assert(user.GetAttribute("Email"), qt.IsNil)
	c.Assert(user.String(), qt.Equals, `{"Age":21,"Identifier":"id"}`)
}

func TestIsNilUser(t *testing.T) {
	c := qt.New(t)
	var data *UserData
	var attrs UserAttributes
	c.Assert(isNilUser(nil), qt.IsTrue)
	c.Assert(isNilUser(data), qt.IsTrue)
	c.Assert(isNilUser(attrs), qt.IsTrue)
	c.Assert(isNilUser(&UserData{}), qt.IsFalse)
	c.Assert(isNilUser(UserAttributes{}), qt.IsFalse)
}

var attributeTextTests = []struct {
	attr interface{}
	want string
}{
	{"text", "text"},
	{[]byte("bytes"), "bytes"},
	{1, "1"},
	{int8(-1), "-1"},
	{uint64(18446744073709551615), "18446744073709551615"},
	{1.5, "1.5"},
	{float32(1.5), "1.5"},
	{3.0, "3"},
	{1e-8, "1e-08"},
	{math.Inf(-1), "-Infinity"},
	{math.NaN(), "NaN"},
	{time.Unix(1700000000, 500e6), "1700000000.5"},
	{[]string{"a", "b"}, `["a","b"]`},
}

func TestAttributeText(t *testing.T) {
	c := qt.New(t)
	for _, test := range attributeTextTests {
		c.Check(attributeText(test.attr), qt.Equals, test.want, qt.Commentf("%#v", test.attr))
	}
}

func TestAttributeFloat(t *testing.T) {
	c := qt.New(t)
	for attr, want := range map[interface{}]float64{
		"1.5":   1.5,
		" 2,5 ": 2.5,
		7:       7,
		uint(8): 8,
		"1e3":   1000,
	} {
		f, err := attributeFloat(attr)
		c.Assert(err, qt.IsNil)
		c.Assert(f, qt.Equals, want)
	}
	_, err := attributeFloat("x")
	c.Assert(err, qt.Not(qt.IsNil))
	_, err = attributeFloat(true)
	c.Assert(err, qt.ErrorMatches, "cannot convert bool to a number")
}

func TestAttributeStringList(t *testing.T) {
	c := qt.New(t)
	list, err := attributeStringList(`["x", "y"]`)
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.DeepEquals, []string{"x", "y"})

	_, err = attributeStringList([]interface{}{"x", 1})
	c.Assert(err, qt.ErrorMatches, "list item 1 has type int, not string")

	_, err = attributeStringList(42)
	c.Assert(err, qt.ErrorMatches, "cannot use int as a list of strings")
}
