// Package validation 提供成员级校验规则及其标签解析
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"relmap/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IValidator 定义通用验证器接口
type IValidator interface {
	Validate(value any) error
}

// Rule 单值校验规则
type Rule interface {
	IValidator

	// Name 规则名，与标签中的写法一致
	Name() string
}

// Required 必填：nil、空指针、空白字符串、空切片视为缺失
type Required struct{}

func (Required) Name() string { return "required" }

func (Required) Validate(value any) error {
	if IsEmpty(value) {
		return errors.NewError(errors.ErrCodeValidation, "不能为空")
	}
	return nil
}

// Length 字符串长度（按字符计），Max 为 0 表示不限制
type Length struct {
	Min int
	Max int
}

func (Length) Name() string { return "length" }

func (r Length) Validate(value any) error {
	s, ok := asString(value)
	if !ok {
		return nil
	}
	return ValidateStringLength(s, "", r.Min, r.Max)
}

// Range 数值范围（闭区间）
type Range struct {
	Min float64
	Max float64
}

func (Range) Name() string { return "range" }

func (r Range) Validate(value any) error {
	f, ok := asFloat(value)
	if !ok {
		return nil
	}
	if f < r.Min || f > r.Max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("必须在%v到%v之间（当前%v）", r.Min, r.Max, f))
	}
	return nil
}

// Email 邮箱格式，空值不校验
type Email struct{}

func (Email) Name() string { return "email" }

func (Email) Validate(value any) error {
	s, ok := asString(value)
	if !ok || s == "" {
		return nil
	}
	return ValidateEmail(s)
}

// Enum 值必须属于给定集合
type Enum struct {
	Values []string
}

func (Enum) Name() string { return "enum" }

func (r Enum) Validate(value any) error {
	if IsEmpty(value) {
		return nil
	}
	return ValidateEnum(fmt.Sprint(deref(value)), "", r.Values)
}

// ParseRules 解析 validate 标签，例如 "required,max=100,min=2,email,range=1..10,enum=a|b"
func ParseRules(tag string) ([]Rule, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || tag == "-" {
		return nil, nil
	}

	var rules []Rule
	var length *Length
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, arg, _ := strings.Cut(part, "=")
		switch strings.ToLower(key) {
		case "required":
			rules = append(rules, Required{})
		case "email":
			rules = append(rules, Email{})
		case "max", "min":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("validation: invalid %s in %q", key, tag)
			}
			if length == nil {
				length = &Length{}
			}
			if key == "max" {
				length.Max = n
			} else {
				length.Min = n
			}
		case "range":
			lo, hi, ok := strings.Cut(arg, "..")
			minV, err1 := strconv.ParseFloat(lo, 64)
			maxV, err2 := strconv.ParseFloat(hi, 64)
			if !ok || err1 != nil || err2 != nil || minV > maxV {
				return nil, fmt.Errorf("validation: invalid range in %q", tag)
			}
			rules = append(rules, Range{Min: minV, Max: maxV})
		case "enum":
			if arg == "" {
				return nil, fmt.Errorf("validation: empty enum in %q", tag)
			}
			rules = append(rules, Enum{Values: strings.Split(arg, "|")})
		default:
			return nil, fmt.Errorf("validation: unknown rule %q", key)
		}
	}
	if length != nil {
		rules = append(rules, *length)
	}
	return rules, nil
}

// IsRequired 规则集中是否包含必填
func IsRequired(rules []Rule) bool {
	for _, r := range rules {
		if _, ok := r.(Required); ok {
			return true
		}
	}
	return false
}

// MaxLength 规则集中的最大长度，未声明时返回 0
func MaxLength(rules []Rule) int {
	for _, r := range rules {
		if l, ok := r.(Length); ok {
			return l.Max
		}
	}
	return 0
}

// ValidateStringLength 验证字符串长度
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能少于%d个字符（当前%d）", fieldName, min, length))
	}
	if max > 0 && length > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能超过%d个字符（当前%d）", fieldName, max, length))
	}
	return nil
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errors.NewError(errors.ErrCodeValidation, "邮箱格式不正确")
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return errors.NewError(errors.ErrCodeValidation,
		fmt.Sprintf("%s的值无效，必须是以下之一: %v", fieldName, validValues))
}

// IsEmpty 判断值是否缺失
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func deref(value any) any {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}

func asString(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	rv := reflect.ValueOf(deref(value))
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), true
		}
	}
	return "", false
}

func asFloat(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(deref(value))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
