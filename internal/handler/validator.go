package handler

import (
    "errors"
    "fmt"
    "net/http"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// RequestValidator plugs go-playground/validator into echo.Validator.
// Field names in messages use the json tag.
type RequestValidator struct {
    v *validator.Validate
}

func NewValidator() *RequestValidator {
    v := validator.New()
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" || name == "" {
            return f.Name
        }
        return name
    })
    return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
    return rv.v.Struct(i)
}

// bindAndValidate binds the request into req and runs the validator.  On
// failure it writes a 400 and returns handled=true.
func bindAndValidate(c echo.Context, req interface{}) (handled bool, err error) {
    if err := c.Bind(req); err != nil {
        return true, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(req); err != nil {
        return true, c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }
    return false, nil
}

func validationMessage(err error) string {
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return "invalid body"
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        switch fe.Tag() {
        case "required":
            msgs = append(msgs, fe.Field()+" is required")
        case "email":
            msgs = append(msgs, fe.Field()+" must be an email address")
        case "oneof":
            msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
        default:
            msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
        }
    }
    return strings.Join(msgs, "; ")
}
