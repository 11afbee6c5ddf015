package entity

// Track is a demo audio track. Replaced wholesale, never mutated.
type Track struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Genre string `json:"genre"`
	Src   string `json:"src"`
}
