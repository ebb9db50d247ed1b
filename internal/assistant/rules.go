package assistant

import "strings"

var cannedReplies = map[string]string{}

func init() {
	register := func(text string, phrases ...string) {
		for _, p := range phrases {
			cannedReplies[p] = text
		}
	}
	register("Hi! I'm the Campusmart assistant. Ask me how to buy or sell, or type an item name to search listings.",
		"hi", "hello", "hey", "hii", "hiya", "yo", "good morning", "good afternoon", "good evening", "namaste")
	register("You're welcome! Anything else I can help with?",
		"thanks", "thank you", "thanks a lot", "thank you so much", "thx", "ty", "thankyou")
	register("Goodbye! Happy trading on Campusmart.",
		"bye", "goodbye", "bye bye", "see you", "see ya", "good night", "cya")
}

type helpTopic struct {
	keywords []string
	text     string
}

// Checked in order; the first topic with a matching word wins.
var helpTopics = []helpTopic{
	{
		keywords: []string{"otp", "verify", "verification", "pickup"},
		text:     "After checkout you get a 6-digit OTP for each seller. Meet the seller, hand over the item payment and tell them the OTP; the seller enters it under Pending Orders to complete the order. You can generate a new OTP from My Orders if you lose it.",
	},
	{
		keywords: []string{"sell", "selling", "list", "listing", "post"},
		text:     "To sell, open Sell, add a title, description, price, photo, category and type, then submit. Titles must be unique. Your listings and incoming orders appear under your profile.",
	},
	{
		keywords: []string{"cart", "basket"},
		text:     "Use Add to Cart on any listing. In the cart you can change quantities or remove items; checking out creates one order per seller.",
	},
	{
		keywords: []string{"buy", "buying", "order", "orders", "checkout", "purchase"},
		text:     "To buy, add items to your cart and check out. Each seller gets a separate order with its own OTP, which you share with the seller at pickup.",
	},
	{
		keywords: []string{"pay", "payment", "payments", "razorpay", "upi", "refund"},
		text:     "You can pay online through Razorpay at checkout or settle directly with the seller at pickup. Refunds are handled between buyer and seller; contact support if something goes wrong.",
	},
	{
		keywords: []string{"chat", "message", "messages", "contact", "seller"},
		text:     "Open a listing and choose Chat with Seller to message them. All your conversations are under Messages.",
	},
	{
		keywords: []string{"account", "login", "logout", "signin", "profile", "register"},
		text:     "Sign in with your campus SSO. On first login you add your name and phone number; you can edit them later from Profile.",
	},
	{
		keywords: []string{"support", "complaint", "report", "problem", "issue"},
		text:     "Use the Contact Support page to send us a message; the team replies by email.",
	},
}

// fillerWords are follow-ups that look like short queries but are not item names.
var fillerWords = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "yes": {}, "yeah": {}, "yep": {}, "no": {}, "nope": {},
	"sure": {}, "hmm": {}, "hm": {}, "more": {}, "why": {}, "how": {}, "what": {}, "when": {},
	"where": {}, "who": {}, "cool": {}, "nice": {}, "great": {}, "fine": {}, "again": {},
	"help": {}, "please": {}, "pls": {}, "and": {}, "then": {}, "so": {}, "really": {},
	"tell me more": {}, "go on": {}, "what else": {}, "got it": {}, "no thanks": {},
}

func cannedReply(norm string) (string, bool) {
	text, ok := cannedReplies[norm]
	return text, ok
}

func helpReply(norm string) (string, bool) {
	words := strings.FieldsFunc(norm, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	for _, topic := range helpTopics {
		for _, k := range topic.keywords {
			if _, ok := set[k]; ok {
				return topic.text, true
			}
		}
	}
	return "", false
}

// isProductQuery: at most two words, no terminal ? ! or ., not a filler.
func isProductQuery(raw, norm string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || norm == "" {
		return false
	}
	switch raw[len(raw)-1] {
	case '?', '!', '.':
		return false
	}
	if len(strings.Fields(norm)) > 2 {
		return false
	}
	_, filler := fillerWords[norm]
	return !filler
}
