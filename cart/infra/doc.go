// Package infra traz as implementações de domain.Storage do carrinho:
// memória (com quota opcional), arquivo e Redis.
package infra
