// Package infra contém implementações concretas dos contratos do pacote domain.
//
//   - SlidingWindow: janela deslizante em memória, por identificador
//   - RedisSlidingWindow: a mesma janela num sorted set compartilhado
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - *StatsStore: estatísticas em memória, Redis e Prometheus
package infra
