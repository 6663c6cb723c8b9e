package stats

import (
	"strings"

	"github.com/squadup/squadup/internal/models"
)

// referralCodeSuffix tags codes with the season they were minted in.
const referralCodeSuffix = "-SP26"

// referralHandleLimit caps how much of the handle enters the code.
const referralHandleLimit = 12

// XPPerConversion is awarded to the referrer for each converted invite.
const XPPerConversion = 100

// ReferralCode derives a user's shareable code from their handle.
// Truncation counts runes, not bytes, so multi-byte handles never
// yield invalid UTF-8 in the code.
func ReferralCode(handle string) string {
	if runes := []rune(handle); len(runes) > referralHandleLimit {
		handle = string(runes[:referralHandleLimit])
	}
	return strings.ToUpper(handle) + referralCodeSuffix
}

// RecruiterMilestone is a referral count that earns a badge.
type RecruiterMilestone struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

// RecruiterMilestones in ascending order of converted referrals.
var RecruiterMilestones = []RecruiterMilestone{
	{Count: 3, Label: "Recruiter"},
	{Count: 10, Label: "Talent Scout"},
	{Count: 25, Label: "Squad Builder"},
}

// ReferralSummary is the viewer-facing referral aggregate.
type ReferralSummary struct {
	Code          string               `json:"code"`
	Total         int                  `json:"total"`
	SignedUp      int                  `json:"signed_up"`
	Converted     int                  `json:"converted"`
	Pending       int                  `json:"pending"`
	XPEarned      int                  `json:"xp_earned"`
	Badges        []RecruiterMilestone `json:"badges"`
	NextMilestone *RecruiterMilestone  `json:"next_milestone,omitempty"`
}

// ComputeReferralSummary aggregates raw referral rows. It is the
// fallback used when the storage backend cannot compute the aggregate
// itself; both paths must agree.
func ComputeReferralSummary(code string, referrals []models.Referral) ReferralSummary {
	summary := ReferralSummary{Code: code, Total: len(referrals)}
	for _, r := range referrals {
		switch r.Status {
		case models.ReferralSignedUp:
			summary.SignedUp++
		case models.ReferralConverted:
			summary.Converted++
		default:
			summary.Pending++
		}
	}
	summary.XPEarned = summary.Converted * XPPerConversion
	summary.applyMilestones()
	return summary
}

// SummaryFromAggregate converts a storage-computed aggregate into the
// same viewer-facing shape as ComputeReferralSummary.
func SummaryFromAggregate(code string, total, signedUp, converted, pending int) ReferralSummary {
	summary := ReferralSummary{
		Code:      code,
		Total:     total,
		SignedUp:  signedUp,
		Converted: converted,
		Pending:   pending,
		XPEarned:  converted * XPPerConversion,
	}
	summary.applyMilestones()
	return summary
}

func (s *ReferralSummary) applyMilestones() {
	for i, m := range RecruiterMilestones {
		if s.Converted >= m.Count {
			s.Badges = append(s.Badges, m)
		} else {
			s.NextMilestone = &RecruiterMilestones[i]
			break
		}
	}
}
