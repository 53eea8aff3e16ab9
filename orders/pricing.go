package orders

import (
	"math"

	"go_trial/foodhub/models"
)

// TaxRate is applied to the subtotal of every order.
const TaxRate = 0.08

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// PriceLine snapshots a menu item into an order line. A matching variant
// overrides the base price as the line's unit price; add-on names the item does not offer are dropped.
func PriceLine(item *models.MenuItem, quantity int, variant string, addOns []string) models.OrderItem {
	line := models.OrderItem{
		MenuItem: item.ID,
		Name:     item.Name,
		Quantity: quantity,
		AddOns:   []models.AddOn{},
	}

	unit := item.Price
	if variant != "" {
		if v, ok := item.VariantNamed(variant); ok {
			unit = v.Price
			line.Variant = &models.Variant{Name: v.Name, Price: v.Price}
		}
	}

	line.Price = unit

	var addOnSum float64
	for _, name := range addOns {
		if a, ok := item.AddOnNamed(name); ok {
			addOnSum += a.Price
			line.AddOns = append(line.AddOns, models.AddOn{Name: a.Name, Price: a.Price})
		}
	}

	line.ItemTotal = RoundCents((unit + addOnSum) * float64(quantity))
	return line
}

func Subtotal(lines []models.OrderItem) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.ItemTotal
	}
	return RoundCents(sum)
}

// ComputePricing keeps total = subtotal + deliveryFee + tax + tip - discount.
func ComputePricing(subtotal, deliveryFee, tip float64, discount models.Discount) models.Pricing {
	tax := RoundCents(subtotal * TaxRate)
	return models.Pricing{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Tax:         tax,
		Tip:         tip,
		Discount:    discount,
		Total:       RoundCents(subtotal + deliveryFee + tax + tip - discount.Amount),
	}
}
