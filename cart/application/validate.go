package application

import (
	"errors"
	"fmt"
	"strings"

	"eventhour-gateway/cart/domain"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidItem envolve qualquer falha de validação de um item vindo de fora.
var ErrInvalidItem = errors.New("cart: invalid item")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateItem checa o item na fronteira (HTTP, rehidratação do storage).
func ValidateItem(it domain.Item) error {
	if err := validate.Struct(it); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidItem, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if it.Price.IsNegative() {
		return fmt.Errorf("%w: Price(gte=0)", ErrInvalidItem)
	}
	return nil
}
