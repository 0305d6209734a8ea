// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Key, Decision, Policy, WindowLimiter...)
//   - application: casos de uso (bucket + janela, acquire/timeout) sem net/http
//   - infra: janela deslizante (memória/Redis), token bucket, semáforo, stats
//   - ratelimit (este pacote): middlewares HTTP, extração de chave, reset administrativo
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Token bucket global; nos endpoints sensíveis, também a janela da política
//  3. Se bloqueado, responde 429 com Retry-After (503 para concorrência)
//  4. Se permitido, chama o próximo handler (ex: reverse proxy); um login 2xx
//     pode zerar a janela da chave (Options.ResetOnStatus)
package ratelimit
