// Package stats holds the pure derived-stat calculators: check-in
// streaks, XP and levels, and referral aggregates. Nothing here
// touches storage; services feed rows in and persist the results.
package stats

import (
	"time"

	"github.com/squadup/squadup/internal/models"
)

// XPPerCheckin is awarded for the first check-in of each day.
const XPPerCheckin = 10

// Milestone is a streak length that pays a bonus.
type Milestone struct {
	Days  int    `json:"days"`
	XP    int    `json:"xp"`
	Label string `json:"label"`
}

// Milestones are the named streak milestones, in ascending order.
// Other multiples of seven pay a flat weekly bonus.
var Milestones = []Milestone{
	{Days: 7, XP: 100, Label: "One Week Warrior"},
	{Days: 14, XP: 200, Label: "Fortnight Fighter"},
	{Days: 30, XP: 500, Label: "Monthly Legend"},
	{Days: 100, XP: 1000, Label: "Century Club"},
}

// weeklyBonusXP pays on multiples of seven that are not named milestones.
const weeklyBonusXP = 50

// MilestoneBonus returns the bonus XP for reaching a streak of days,
// zero when the day is not a milestone.
func MilestoneBonus(days int) int {
	for _, m := range Milestones {
		if m.Days == days {
			return m.XP
		}
	}
	if days > 0 && days%7 == 0 {
		return weeklyBonusXP
	}
	return 0
}

// NextMilestone returns the next milestone strictly after the current
// streak. Past the last named milestone the weekly bonus keeps going,
// so the next multiple of seven is reported.
func NextMilestone(days int) Milestone {
	for _, m := range Milestones {
		if m.Days > days {
			return m
		}
	}
	next := (days/7 + 1) * 7
	return Milestone{Days: next, XP: weeklyBonusXP, Label: "Weekly Bonus"}
}

// FlameIntensity maps a streak length to a display tier from 0 to 4.
func FlameIntensity(days int) int {
	switch {
	case days >= 30:
		return 4
	case days >= 14:
		return 3
	case days >= 7:
		return 2
	case days >= 3:
		return 1
	default:
		return 0
	}
}

// LevelThresholds is the cumulative XP required to enter each level.
// Index i is the floor of level i+1.
var LevelThresholds = []int{0, 100, 250, 500, 1000, 2000, 4000, 7000, 11000, 16000}

// LevelForXP returns the 1-based level for a total XP amount.
func LevelForXP(xp int) int {
	level := 1
	for i, threshold := range LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// dateLayout is the calendar-day resolution used for streak tracking.
const dateLayout = "2006-01-02"

// StreakResult reports what one check-in did to a profile's streak.
type StreakResult struct {
	Days      int        `json:"days"`
	GainedXP  int        `json:"gained_xp"`
	Milestone *Milestone `json:"milestone,omitempty"`
}

// AdvanceStreak applies one check-in at now to the profile's streak
// fields in place. The second check-in of a calendar day is a no-op.
// A check-in the day after the last one extends the streak; any longer
// gap resets it to one.
func AdvanceStreak(p *models.Profile, now time.Time) StreakResult {
	today := now.Format(dateLayout)
	if p.StreakLastDate == today {
		return StreakResult{Days: p.StreakDays}
	}

	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if p.StreakLastDate == yesterday {
		p.StreakDays++
	} else {
		p.StreakDays = 1
	}
	p.StreakLastDate = today

	gained := XPPerCheckin + MilestoneBonus(p.StreakDays)
	p.XP += gained
	p.Level = LevelForXP(p.XP)

	result := StreakResult{Days: p.StreakDays, GainedXP: gained}
	for i := range Milestones {
		if Milestones[i].Days == p.StreakDays {
			result.Milestone = &Milestones[i]
			break
		}
	}
	return result
}
