// Package crpt é o cliente da API de documentos (criação de documento de
// introdução de mercadorias).
//
// Toda chamada passa antes por um domain.Admitter (normalmente uma
// infra.SlidingWindow): a requisição HTTP só sai depois da admissão, e um
// ctx cancelado durante a espera devolve o erro de cancelamento sem enviar nada.
package crpt
