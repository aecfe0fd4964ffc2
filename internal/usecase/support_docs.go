package usecase

import "support-agent/internal/domain"

// DefaultFAQs is the support knowledge base embedded into every system prompt.
var DefaultFAQs = []domain.FAQ{
	{
		Question: "How do I book a stylist?",
		Answer:   "Open the Hair for Hire app, tap 'Book Appointment', choose a stylist, select a time, and confirm.",
	},
	{
		Question: "Can I cancel my appointment?",
		Answer:   "Yes, you can cancel up to 2 hours before with no charge. After that, a cancellation fee may apply.",
	},
	{
		Question: "How are stylists paid?",
		Answer:   "Stylists get paid through the app after the appointment is completed and rated.",
	},
	{
		Question: "What if the stylist is late?",
		Answer:   "Try messaging them in the app. If they are 20+ minutes late, you can request a refund or rebook.",
	},
	{
		Question: "Can I reschedule?",
		Answer:   "Yes. Go to your bookings, tap the appointment, and choose 'Reschedule'.",
	},
}
