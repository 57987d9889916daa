package domain

import "errors"

var (
	// ErrInvalidConfiguration é retornado na construção quando limite ou janela não são positivos.
	ErrInvalidConfiguration = errors.New("invalid rate limit configuration")

	// ErrCancelled indica que o chamador desistiu (ctx encerrado) enquanto aguardava vaga.
	ErrCancelled = errors.New("admission cancelled while waiting")
)

func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
