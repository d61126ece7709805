package model

// Brand is one marketplace brand reference entry.
type Brand struct {
	ID    int64
	Title string
}

// Catalog is one marketplace catalog (category) reference entry.
type Catalog struct {
	ID    int64
	Title string
}
