package main

import "github.com/EduardooSodre/zarife-sub000/internal/entity"

// Development catalog, inserted only when the products table is empty.
var seedProducts = []entity.Product{
	{ID: "prod-001", Name: "Wireless Noise-Cancelling Headphones", Description: "Premium over-ear headphones with active noise cancellation and 30-hour battery life.", Price: 34999, ImageURL: "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400", Category: "Electronics", Stock: 50, Active: true},
	{ID: "prod-002", Name: "Mechanical Keyboard RGB", Description: "Cherry MX switches with per-key RGB lighting and aluminum frame.", Price: 17999, ImageURL: "https://images.unsplash.com/photo-1618384887929-16ec33fab9ef?w=400", Category: "Electronics", Stock: 120, Active: true},
	{ID: "prod-003", Name: "Ultrawide Curved Monitor 34\"", Description: "UWQHD 3440x1440 144Hz IPS panel with USB-C connectivity.", Price: 69999, ImageURL: "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf?w=400", Category: "Electronics", Stock: 30, Active: true},
	{ID: "prod-004", Name: "Ergonomic Office Chair", Description: "Adjustable lumbar support, breathable mesh, and 4D armrests.", Price: 54999, ImageURL: "https://images.unsplash.com/photo-1592078615290-033ee584e267?w=400", Category: "Furniture", Stock: 25, Active: true},
	{ID: "prod-005", Name: "Organic Cotton T-Shirt", Description: "Heavyweight 220gsm organic cotton, relaxed fit.", Price: 2999, ImageURL: "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400", Category: "Apparel", Stock: 0, Active: true},
	{ID: "prod-006", Name: "Trail Running Shoes", Description: "Grippy outsole and breathable mesh upper for mixed terrain.", Price: 12999, ImageURL: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=400", Category: "Apparel", Stock: 0, Active: true},
}

// Apparel items carry their stock on variant rows; their product rows keep
// stock 0 so a variant-less line can never oversell the base counter.
var seedVariants = []entity.ProductVariant{
	{ProductID: "prod-005", Size: "S", Color: "white", Stock: 40},
	{ProductID: "prod-005", Size: "M", Color: "white", Stock: 60},
	{ProductID: "prod-005", Size: "L", Color: "white", Stock: 50},
	{ProductID: "prod-005", Size: "M", Color: "black", Stock: 35},
	{ProductID: "prod-006", Size: "42", Color: "", Stock: 20},
	{ProductID: "prod-006", Size: "43", Color: "", Stock: 25},
	{ProductID: "prod-006", Size: "44", Color: "", Stock: 15},
}
