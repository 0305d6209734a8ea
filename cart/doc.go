// Package cart expõe o carrinho da storefront via HTTP (chi).
//
// A sessão vem do cookie eventhour_session; cada sessão tem seu próprio
// application.Store, persistido no storage configurado.
package cart
