// Package validation 注册请求体使用的自定义校验规则，并按字段输出校验错误
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once    sync.Once
	choices = map[string][]string{}
	mu      sync.RWMutex
)

// RegisterChoices 注册 `choice=<name>`，校验字符串取值
func RegisterChoices(name string, values ...string) {
	mu.Lock()
	defer mu.Unlock()
	choices[name] = values
}

// Setup 为 gin 的 validator 设置 json 字段名和自定义规则，可重复调用
func Setup() error {
	var err error
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		err = Register(v)
	})
	return err
}

// Register 在 v 上注册规则
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return err
	}
	return v.RegisterValidation("choice", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		mu.RLock()
		allowed := choices[fl.Param()]
		mu.RUnlock()
		val := fl.Field().String()
		for _, a := range allowed {
			if a == val {
				return true
			}
		}
		return false
	})
}

// Fields 按 json 字段名输出 verrs
func Fields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fe.Param() + " items max"
		}
		return fe.Param() + " characters max"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fe.Param() + " item min"
		}
		return fe.Param() + " characters min"
	case "uuid", "uuid4":
		return "Invalid uuid"
	case "oneof":
		return "Invalid choice! Allowed: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "choice":
		mu.RLock()
		allowed := choices[fe.Param()]
		mu.RUnlock()
		return "Invalid choice! Allowed: " + strings.Join(allowed, ", ")
	default:
		return "Invalid value"
	}
}
