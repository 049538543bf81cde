package catalog

type ServiceResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       *string `json:"price"`
}

type ServicesResponse struct {
	Services []ServiceResponse `json:"services"`
}
