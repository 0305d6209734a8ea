// Package application contém os casos de uso do carrinho: o Store com
// persistência write-through, o mapa de sessões e a validação de fronteira.
//
// Não sabe nada sobre HTTP nem sobre qual storage está por baixo.
package application
