package repository

import "errors"

// ErrNotFound se devuelve cuando el registro pedido no existe. Las
// implementaciones Pg traducen pgx.ErrNoRows a este error para que los
// servicios no dependan del driver.
var ErrNotFound = errors.New("record not found")
