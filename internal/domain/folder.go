package domain

import "time"

// Folder agrupa hilos en la barra lateral. Es organización pura: no guarda
// ninguna relación con la procedencia de forks. Un hilo aparece a lo sumo
// en un folder.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	ThreadIDs []string  `json:"thread_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
