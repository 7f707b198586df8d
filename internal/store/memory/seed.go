package memory

import (
	"context"
	"time"

	"github.com/boloapp/order-service/internal/models"
)

// Seed loads the development dataset: the five reference orders and their
// change journeys. Tests and local runs rely on these ids.
func Seed(ctx context.Context, s *Store) error {
	for _, o := range SeedOrders() {
		if err := s.Create(ctx, o); err != nil {
			return err
		}
	}
	for _, e := range SeedHistory() {
		if err := s.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// SeedOrders returns the reference orders.
func SeedOrders() []*models.Order {
	return []*models.Order{
		{
			ID:          "ORD001",
			PromotionID: "PROM001",
			Promotion: models.PromotionSnapshot{
				ID: "PROM001",
				Product: models.ProductSnapshot{
					ID:           "PROD001",
					Name:         "T-shirt BOLO Premium",
					Description:  "T-shirt 100% coton avec logo BOLO",
					Category:     "vetements",
					RegularPrice: 15000,
				},
				PromoPrice:    13500,
				PromoDiscount: 10,
			},
			Customer: models.Customer{
				Name:  "Jean Dupont",
				Phone: "+225 07 07 07 07 07",
				Email: "jean.dupont@email.com",
			},
			Quantity:      2,
			TotalAmount:   27000,
			PaymentMethod: models.PaymentMethodMobileMoney,
			PaymentStatus: models.PaymentStatusPending,
			OrderStatus:   models.OrderStatusPending,
			CreatedAt:     seedTime("2024-03-20T10:00:00Z"),
			UpdatedAt:     seedTime("2024-03-20T10:00:00Z"),
		},
		{
			ID:          "ORD002",
			PromotionID: "PROM002",
			Promotion: models.PromotionSnapshot{
				ID: "PROM002",
				Product: models.ProductSnapshot{
					ID:           "PROD002",
					Name:         "Casquette BOLO",
					Description:  "Casquette ajustable avec logo brodé",
					Category:     "accessoires",
					RegularPrice: 8000,
				},
				PromoPrice:    7200,
				PromoDiscount: 10,
			},
			Customer: models.Customer{
				Name:  "Marie Koné",
				Phone: "+225 01 01 01 01 01",
				Email: "marie.kone@email.com",
			},
			Quantity:      1,
			TotalAmount:   7200,
			PaymentMethod: models.PaymentMethodCash,
			PaymentStatus: models.PaymentStatusPaid,
			OrderStatus:   models.OrderStatusConfirmed,
			CreatedAt:     seedTime("2024-03-19T15:30:00Z"),
			UpdatedAt:     seedTime("2024-03-19T15:45:00Z"),
		},
		{
			ID:          "ORD003",
			PromotionID: "PROM003",
			Promotion: models.PromotionSnapshot{
				ID: "PROM003",
				Product: models.ProductSnapshot{
					ID:           "PROD003",
					Name:         "Sweat BOLO",
					Description:  "Sweat à capuche avec logo imprimé",
					Category:     "vetements",
					RegularPrice: 25000,
				},
				PromoPrice:    22500,
				PromoDiscount: 10,
			},
			Customer: models.Customer{
				Name:  "Amadou Traoré",
				Phone: "+225 05 05 05 05 05",
				Email: "amadou.traore@email.com",
			},
			Quantity:      2,
			TotalAmount:   45000,
			PaymentMethod: models.PaymentMethodCard,
			PaymentStatus: models.PaymentStatusPaid,
			OrderStatus:   models.OrderStatusProcessing,
			CreatedAt:     seedTime("2024-03-18T09:15:00Z"),
			UpdatedAt:     seedTime("2024-03-18T14:30:00Z"),
		},
		{
			ID:          "ORD004",
			PromotionID: "PROM004",
			Promotion: models.PromotionSnapshot{
				ID: "PROM004",
				Product: models.ProductSnapshot{
					ID:           "PROD004",
					Name:         "Sac BOLO",
					Description:  "Sac en toile avec logo brodé",
					Category:     "accessoires",
					RegularPrice: 12000,
				},
				PromoPrice:    10800,
				PromoDiscount: 10,
			},
			Customer: models.Customer{
				Name:  "Fatou Ouattara",
				Phone: "+225 03 03 03 03 03",
				Email: "fatou.ouattara@email.com",
			},
			Quantity:      1,
			TotalAmount:   10800,
			PaymentMethod: models.PaymentMethodBankTransfer,
			PaymentStatus: models.PaymentStatusPaid,
			OrderStatus:   models.OrderStatusDelivered,
			CreatedAt:     seedTime("2024-03-17T11:20:00Z"),
			UpdatedAt:     seedTime("2024-03-17T16:45:00Z"),
		},
		{
			ID:          "ORD005",
			PromotionID: "PROM005",
			Promotion: models.PromotionSnapshot{
				ID: "PROM005",
				Product: models.ProductSnapshot{
					ID:           "PROD005",
					Name:         "T-shirt BOLO Classic",
					Description:  "T-shirt basique avec logo imprimé",
					Category:     "vetements",
					RegularPrice: 12000,
				},
				PromoPrice:    10800,
				PromoDiscount: 10,
			},
			Customer: models.Customer{
				Name:  "Koffi Yao",
				Phone: "+225 09 09 09 09 09",
				Email: "koffi.yao@email.com",
			},
			Quantity:      1,
			TotalAmount:   10800,
			PaymentMethod: models.PaymentMethodMobileMoney,
			PaymentStatus: models.PaymentStatusFailed,
			OrderStatus:   models.OrderStatusCancelled,
			CreatedAt:     seedTime("2024-03-16T14:10:00Z"),
			UpdatedAt:     seedTime("2024-03-16T15:30:00Z"),
		},
	}
}

var (
	actorAdmin     = models.Actor{ID: "USER001", Name: "Marie Koné", Role: "admin"}
	actorPayments  = models.Actor{ID: "USER002", Name: "Système de paiement", Role: "system"}
	actorWarehouse = models.Actor{ID: "USER003", Name: "Amadou Traoré", Role: "warehouse"}
	actorDelivery  = models.Actor{ID: "USER004", Name: "Fatou Ouattara", Role: "delivery"}
)

// SeedHistory returns the change journeys matching SeedOrders.
func SeedHistory() []*models.HistoryEntry {
	return []*models.HistoryEntry{
		seedEntry("ORD001", models.ChangeTypeStatus, "pending", "confirmed",
			"Commande validée après vérification du stock", actorAdmin, "2024-03-20T10:15:00Z"),
		seedEntry("ORD001", models.ChangeTypePayment, "pending", "paid",
			"Paiement mobile money reçu (Orange Money)", actorPayments, "2024-03-20T10:20:00Z"),
		seedEntry("ORD001", models.ChangeTypeStatus, "confirmed", "processing",
			"Commande en cours de préparation", actorWarehouse, "2024-03-20T11:30:00Z"),

		seedEntry("ORD002", models.ChangeTypePaymentMethod, "mobile_money", "cash",
			"Client a demandé de payer à la livraison", actorAdmin, "2024-03-19T15:30:00Z"),
		seedEntry("ORD002", models.ChangeTypeStatus, "pending", "confirmed",
			"Commande confirmée pour paiement à la livraison", actorAdmin, "2024-03-19T15:35:00Z"),
		seedEntry("ORD002", models.ChangeTypePayment, "pending", "paid",
			"Paiement reçu en espèces à la livraison", actorDelivery, "2024-03-19T15:45:00Z"),

		seedEntry("ORD003", models.ChangeTypePaymentMethod, "mobile_money", "card",
			"Problème avec l'application mobile money, client a opté pour la carte", actorAdmin, "2024-03-18T09:15:00Z"),
		seedEntry("ORD003", models.ChangeTypePayment, "pending", "paid",
			"Paiement par carte Visa accepté", actorPayments, "2024-03-18T09:20:00Z"),
		seedEntry("ORD003", models.ChangeTypeStatus, "pending", "confirmed",
			"Commande confirmée après paiement", actorAdmin, "2024-03-18T09:25:00Z"),
		seedEntry("ORD003", models.ChangeTypeStatus, "confirmed", "processing",
			"Commande en cours de préparation", actorWarehouse, "2024-03-18T14:30:00Z"),

		seedEntry("ORD004", models.ChangeTypePayment, "pending", "paid",
			"Virement bancaire reçu", actorPayments, "2024-03-17T11:20:00Z"),
		seedEntry("ORD004", models.ChangeTypeStatus, "pending", "confirmed",
			"Commande confirmée après réception du paiement", actorAdmin, "2024-03-17T11:25:00Z"),
		seedEntry("ORD004", models.ChangeTypeStatus, "confirmed", "processing",
			"Commande en cours de préparation", actorWarehouse, "2024-03-17T14:30:00Z"),
		seedEntry("ORD004", models.ChangeTypeStatus, "processing", "delivered",
			"Commande livrée et reçue par le client", actorDelivery, "2024-03-17T16:45:00Z"),

		seedEntry("ORD005", models.ChangeTypePayment, "pending", "failed",
			"Transaction mobile money échouée - Solde insuffisant", actorPayments, "2024-03-16T14:10:00Z"),
		seedEntry("ORD005", models.ChangeTypeStatus, "pending", "cancelled",
			"Commande annulée suite à l'échec du paiement", actorAdmin, "2024-03-16T15:30:00Z"),
	}
}

func seedEntry(orderID string, t models.ChangeType, prev, next, reason string, by models.Actor, at string) *models.HistoryEntry {
	e := models.NewHistoryEntry(orderID, t, prev, next, reason, by)
	e.CreatedAt = seedTime(at)
	return e
}

func seedTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}
