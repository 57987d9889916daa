// Package ratelimit fornece adapters HTTP (net/http) para admissão por janela
// deslizante e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão imediata, espera por vaga, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + wiring/extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Extrai a chave do cliente (IP/header/XFF)
//   2) Chama a camada application: decide na hora ou espera até MaxWait por uma vaga
//   3) Se bloqueado, responde 429 (rate limit) ou 503 (concorrência)
//   4) Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_LIMIT, RATE_WINDOW, RATE_MAX_WAIT, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
