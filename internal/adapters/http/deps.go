package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/casahunt/internal/adapters/postgres"
	"github.com/samirrijal/casahunt/internal/adapters/valkey"
	"github.com/samirrijal/casahunt/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Geocode  *usecases.GeocodeService
	Transit  *usecases.TransitService
	Listings *usecases.ListingService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}

// validate is shared by all request DTOs; validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage renders the first failed constraint in a client-facing form.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// Drop the root struct name: "req.entities[0].id" -> "entities[0].id".
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
	return "invalid request"
}
