package services

import "github.com/c360studio/udahub/capability/tools"

// SeedDemo loads a small demo dataset: a handful of knowledge base
// articles, two customers, and a few reservations. Used by the demo CLI
// and by tests.
func SeedDemo(kb *KBService, account *AccountService) error {
	articles := []tools.Article{
		{
			ArticleID: "kb-001",
			AccountID: "cultpass",
			Title:     "How to reset your password",
			Content: "If you cannot log in, use the Forgot Password link on the " +
				"sign-in page. A reset email arrives within a few minutes. If it " +
				"does not, check your spam folder and confirm the address on file.",
			Tags: "login,password,reset",
		},
		{
			ArticleID: "kb-002",
			AccountID: "cultpass",
			Title:     "Refunds for cancelled experiences",
			Content: "When an experience is cancelled by the venue, the reservation " +
				"is refunded automatically within 5 business days. For other refund " +
				"requests, the booking must be cancelled at least 48 hours before start.",
			Tags: "refund,billing,cancellation",
		},
		{
			ArticleID: "kb-003",
			AccountID: "cultpass",
			Title:     "Changing or cancelling a reservation",
			Content: "Reservations can be changed up to 24 hours before the " +
				"experience starts from the bookings page. After that window, contact " +
				"support and we will check availability with the venue.",
			Tags: "reservation,booking,change",
		},
		{
			ArticleID: "kb-004",
			AccountID: "cultpass",
			Title:     "Subscription billing dates",
			Content: "Subscriptions renew on the same calendar day each month. " +
				"Invoices are emailed on renewal and available under Account, then " +
				"Billing history.",
			Tags: "subscription,billing,invoice",
		},
	}
	for _, a := range articles {
		if err := kb.AddArticle(a); err != nil {
			return err
		}
	}

	users := []tools.ExternalUser{
		{UserID: "cp-1001", Name: "Rosa Delgado", Email: "rosa@example.com"},
		{UserID: "cp-1002", Name: "Mika Tanaka", Email: "mika@example.com"},
	}
	for _, u := range users {
		if err := account.AddExternalUser(u); err != nil {
			return err
		}
	}

	coreUsers := []tools.CoreUser{
		{UserID: "u-1", AccountID: "cultpass", ExternalUserID: "cp-1001", UserName: "rosa"},
		{UserID: "u-2", AccountID: "cultpass", ExternalUserID: "cp-1002", UserName: "mika"},
	}
	for _, u := range coreUsers {
		if err := account.AddCoreUser(u); err != nil {
			return err
		}
	}

	experiences := []struct{ id, title, location string }{
		{"exp-01", "Modern Art After Hours", "City Gallery"},
		{"exp-02", "Jazz in the Crypt", "St. Pancras"},
	}
	for _, e := range experiences {
		if err := account.AddExperience(e.id, e.title, e.location); err != nil {
			return err
		}
	}

	reservations := []tools.Reservation{
		{ReservationID: "res-01", UserID: "cp-1001", ExperienceID: "exp-01", Status: "confirmed"},
		{ReservationID: "res-02", UserID: "cp-1001", ExperienceID: "exp-02", Status: "cancelled"},
		{ReservationID: "res-03", UserID: "cp-1002", ExperienceID: "exp-02", Status: "confirmed"},
	}
	for _, r := range reservations {
		if err := account.AddReservation(r); err != nil {
			return err
		}
	}

	if err := account.AddTicketRecord("T-900", "u-1"); err != nil {
		return err
	}
	return nil
}
