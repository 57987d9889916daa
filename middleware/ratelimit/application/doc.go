// Package application contém os casos de uso (regras de aplicação) para admissão
// por janela deslizante e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after);
// AdmissionService.Acquire(ctx, req) espera a vaga e registra estatísticas.
package application
