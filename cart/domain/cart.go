package domain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// ErrQuantityLimit indica que a linha passaria de MaxQuantity.
var ErrQuantityLimit = errors.New("cart: quantity limit exceeded")

// Cart é o agregado do carrinho. A ordem de inserção dos itens é preservada.
//
// Os métodos de mutação assumem itens já validados e devolvem se o estado mudou;
// quem persiste decide a partir desse retorno.
type Cart struct {
	Items []Item `json:"items"`
}

func (c *Cart) index(id string) int {
	return slices.IndexFunc(c.Items, func(it Item) bool { return it.ID == id })
}

// Find devolve uma cópia do item com o id.
func (c *Cart) Find(id string) (Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// Add inclui o item. Se o id já existe, soma a quantidade na linha existente
// e mantém title/price/date/participants originais. Uma soma acima de
// MaxQuantity é recusada com ErrQuantityLimit e o carrinho não muda.
func (c *Cart) Add(item Item) error {
	if i := c.index(item.ID); i >= 0 {
		if item.Quantity > MaxQuantity-c.Items[i].Quantity {
			return fmt.Errorf("%w: line %q has %d, adding %d", ErrQuantityLimit, item.ID, c.Items[i].Quantity, item.Quantity)
		}
		c.Items[i].Quantity += item.Quantity
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity troca a quantidade; quantity <= 0 remove a linha e acima de
// MaxQuantity fica em MaxQuantity.
// Retorna false se o id não existe.
func (c *Cart) SetQuantity(id string, quantity int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
		return true
	}
	c.Items[i].Quantity = min(quantity, MaxQuantity)
	return true
}

// Remove retorna false se o id não existe.
func (c *Cart) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	return true
}

func (c *Cart) Clear() { c.Items = nil }

// TotalItems soma as quantidades. Calculado a cada chamada.
func (c Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// TotalPrice soma price × quantity em decimal (sem erro de ponto flutuante).
func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Clone devolve uma cópia independente dos itens.
func (c Cart) Clone() Cart {
	return Cart{Items: slices.Clone(c.Items)}
}
