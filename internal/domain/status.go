package domain

// DeriveStatus computes a product's stock status. It is the only source of
// Product.Status and must be re-run after every stock change.
func DeriveStatus(stock int, reorderLevel int) string {
	switch {
	case stock <= 0:
		return ProductStatusDepleted
	case stock <= reorderLevel:
		return ProductStatusLow
	default:
		return ProductStatusAvailable
	}
}

// ApplyStock sets the stock and refreshes the derived status in one step.
func (p *Product) ApplyStock(stock int) {
	p.Stock = stock
	p.Status = DeriveStatus(stock, p.ReorderLevel)
}
