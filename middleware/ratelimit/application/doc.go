// Package application contém os casos de uso para rate limit e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) combina token bucket e janela deslizante em uma Decision.
package application
