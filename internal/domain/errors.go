package domain

import "errors"

// Errores centinela del dominio. Se comprueban con errors.Is y cada host
// los traduce a su protocolo (la CLI a mensajes, el servidor HTTP a códigos).
var (
	// ErrNotFound indica que el recurso no existe: un mercado sin
	// snapshots de precio, una orden recurrente desconocida.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indica una operación incompatible con el estado
	// actual: cerrar sin cantidad una posición inexistente o agotada.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument indica parámetros fuera de rango: cantidad no
	// positiva, precio fuera de [0,1], side desconocido.
	ErrInvalidArgument = errors.New("invalid argument")
)
