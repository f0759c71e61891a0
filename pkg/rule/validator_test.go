package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/rule"
)

// TestStruct 用于测试 ValidateStruct.
type TestStruct struct {
	Name string `json:"name" rule:"required"`
	Age  int    `json:"age"  rule:"gte=18"`
}

func TestEngine(t *testing.T) {
	assert.NotNil(t, rule.Engine())
}

// TestValidateStruct 测试 ValidateStruct 对有效和无效结构体的验证.
func TestValidateStruct(t *testing.T) {
	require.NoError(t, rule.ValidateStruct(TestStruct{Name: "John", Age: 25}))

	// 缺少 Name
	err := rule.ValidateStruct(TestStruct{Name: "", Age: 25})
	require.Error(t, err)
	assert.Equal(t, "failed on required", rule.Errors(err)["name"])

	// Age 小于 18
	err = rule.ValidateStruct(TestStruct{Name: "Jane", Age: 16})
	require.Error(t, err)
	assert.Equal(t, "failed on gte=18", rule.Errors(err)["age"])
}

func TestErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, rule.Errors(assert.AnError))
	assert.Nil(t, rule.Errors(nil))
}

// TestValidateVar 测试 ValidateVar 对变量的验证.
func TestValidateVar(t *testing.T) {
	assert.NoError(t, rule.ValidateVar("test@example.com", "required,email"))
	assert.Error(t, rule.ValidateVar("invalid-email", "required,email"))
	assert.NoError(t, rule.ValidateVar(25, "gte=18"))
	assert.Error(t, rule.ValidateVar(15, "gte=18"))
}

func TestBuiltinRules(t *testing.T) {
	cases := []struct {
		value string
		tag   string
		ok    bool
	}{
		{"aZ09_-xy", "share_token", true},
		{"abc/def", "share_token", false},
		{"a b", "share_token", false},
		{"01J9ZQ.pdf", "blob_name", true},
		{"..", "blob_name", false},
		{".", "blob_name", false},
		{"../etc/passwd", "blob_name", false},
		{`a\b`, "blob_name", false},
		{"report.pdf", "display_name", true},
	}

	for _, tc := range cases {
		err := rule.ValidateVar(tc.value, tc.tag)
		if tc.ok {
			assert.NoError(t, err, "%s %q", tc.tag, tc.value)
		} else {
			assert.Error(t, err, "%s %q", tc.tag, tc.value)
		}
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}

		return len(str)%2 == 0
	})
	require.NoError(t, err)

	assert.NoError(t, rule.ValidateVar("test", "even_length"))
	assert.Error(t, rule.ValidateVar("test1", "even_length"))
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("min_required", "required,min=3")

	assert.NoError(t, rule.ValidateVar("abc", "min_required"))
	assert.Error(t, rule.ValidateVar("ab", "min_required"))
}
