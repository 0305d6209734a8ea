// Package domain define contratos e tipos de domínio para rate limit
// (token bucket e janela deslizante) e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
