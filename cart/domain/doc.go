// Package domain contém o agregado do carrinho, as regras de mutação,
// o formato persistido e o contrato de storage.
package domain
