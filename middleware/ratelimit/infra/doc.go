// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindow: admissão por janela deslizante (bloqueante ou não)
//   - Store: uma SlidingWindow por chave com limpeza de chaves ociosas
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore / PrometheusStatsStore: estatísticas de decisão
package infra
