package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
)

const favorInstruction = `[Favorability rule]
Judge the player's latest message. If it is offensive or boring, lower your favorability by 1 to 20. If it is kind or fun, raise it by 1 to 20.
Append exactly one tag at the very end of your reply, for example: ...[FAVORABILITY:+5] or ...[FAVORABILITY:-3]. Never mention the tag otherwise.`

const defaultSummaryInstruction = "Summarize what happened in this conversation: the main events, what people focused on, and the overall mood."

var tierOutcome = map[progression.Tier]string{
	progression.TierCritical: "a spectacular success, pure luck is on their side",
	progression.TierSuccess:  "a success",
	progression.TierFail:     "a failure",
	progression.TierFumble:   "a disastrous fumble, clumsy and painful",
}

func goldText(n int) string { return humanize.Comma(int64(n)) + " G" }

func slot(name string) string {
	if name == "" {
		return "none"
	}
	return name
}

// systemPrompt is the persona, then knowledge, then what the bot knows about
// the player. Extra blocks are appended in order.
func systemPrompt(bot catalog.Bot, a Actor, rec *progression.Record, extra ...string) string {
	var b strings.Builder
	b.WriteString(bot.Persona())

	if len(bot.Knowledge) > 0 {
		b.WriteString("\n\n[Knowledge]\n")
		for _, k := range bot.Knowledge {
			if k = strings.TrimSpace(k); k != "" {
				b.WriteString("- ")
				b.WriteString(k)
				b.WriteByte('\n')
			}
		}
	}

	stage := progression.StageOf(rec.Favorability)
	fmt.Fprintf(&b, "\n\n[Player profile]\nName: %s\n", a.label())
	if card := strings.TrimSpace(rec.Card); card != "" {
		fmt.Fprintf(&b, "Card: %s\n", card)
	}
	fmt.Fprintf(&b, "Equipment: weapon %s, armor %s\n", slot(rec.Equip.Weapon), slot(rec.Equip.Armor))
	fmt.Fprintf(&b, "Favorability: %d/%d (%s: %s)\n", rec.Favorability, progression.FavorMax, stage.Title, stage.Description)
	fmt.Fprintf(&b, "Attitude: %s", stage.Directive)

	for _, block := range extra {
		if block = strings.TrimSpace(block); block != "" {
			b.WriteString("\n\n")
			b.WriteString(block)
		}
	}
	return b.String()
}

// giftDirective tells the persona how to take a gift given the score after
// the gift was applied.
func giftDirective(rec *progression.Record, item progression.Item, letter string) string {
	var tone string
	switch {
	case rec.Favorability < 0:
		tone = "You dislike this player. Receive the gift with disdain and suspect a bribe."
	case rec.Favorability < 100:
		tone = "Receive the gift politely, a little surprised."
	default:
		tone = "You are fond of this player. Receive the gift with open delight."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[Gift received]\nThe player just gave you %q.", item.Name)
	if item.Desc != "" {
		fmt.Fprintf(&b, " (%s)", item.Desc)
	}
	if letter != "" {
		fmt.Fprintf(&b, "\nThe letter reads:\n%s", letter)
	}
	b.WriteString("\n")
	b.WriteString(tone)
	return b.String()
}

func userMessage(history []string, prompt string) string {
	h := trimHistory(history)
	if len(h) == 0 {
		return prompt
	}
	return "History:\n" + strings.Join(h, "\n") + "\n\n" + prompt
}

func purchasePrompt(a Actor, res progression.PurchaseResult) string {
	if res.Directive == progression.DirectiveGiftReceive {
		return fmt.Sprintf("%s hands you a gift: %s. React in character.", a.label(), res.Item.Name)
	}
	return fmt.Sprintf("%s just bought %s (%s) for %s and has %s left. Comment on the purchase in character, briefly.",
		a.label(), res.Item.Name, res.Item.Category, goldText(res.Item.Cost), goldText(res.GoldAfter))
}

func staticPurchase(res progression.PurchaseResult) string {
	return fmt.Sprintf("Purchased %s for %s. Gold left: %s.", res.Item.Name, goldText(res.Item.Cost), goldText(res.GoldAfter))
}

func explorePrompt(a Actor, res progression.ExploreResult) string {
	var b strings.Builder
	b.WriteString("You are the dungeon master. Narrate this exploration to the player in the second person, in a few vivid sentences. ")
	b.WriteString("Stay in the scene: no dice talk, no game terms, no out-of-character remarks.\n\n")
	fmt.Fprintf(&b, "Player: %s\n", a.label())
	fmt.Fprintf(&b, "Scene: %s\n", res.Seed)
	fmt.Fprintf(&b, "Check: d100 rolled %d, final %d, %s\n", res.Roll, res.FinalRoll, res.Tier)
	fmt.Fprintf(&b, "Outcome: %s\n", tierOutcome[res.Tier])
	if ev := res.Event; ev != nil {
		switch res.Tier {
		case progression.TierSuccess, progression.TierCritical:
			if ev.SuccessText != "" {
				fmt.Fprintf(&b, "What happens: %s\n", ev.SuccessText)
			}
		default:
			if ev.FailText != "" {
				fmt.Fprintf(&b, "What happens: %s\n", ev.FailText)
			}
		}
	}
	fmt.Fprintf(&b, "Gold change: %+d\nHP change: %+d (now %d)", res.GoldApplied, res.HPDelta, max(0, res.HPAfter))
	if res.HPAfter <= 0 {
		b.WriteString("\nThe player collapses and cannot go on.")
	}
	return b.String()
}

func staticExplore(res progression.ExploreResult) string {
	return fmt.Sprintf("%s\nd100: %d (final %d), %s. Gold %+d, HP %+d (now %d).",
		res.Seed, res.Roll, res.FinalRoll, res.Tier, res.GoldApplied, res.HPDelta, max(0, res.HPAfter))
}

func duelPrompt(r *DuelReport) string {
	var b strings.Builder
	b.WriteString("You are a fight commentator. Call this duel with energy, round by round in brief, highlight critical hits and fumbles, then state the result.\n\n")
	fmt.Fprintf(&b, "Mode: %s\n", r.Mode)
	fmt.Fprintf(&b, "Matchup: %s vs %s\n", r.Challenger.Name, r.Target.Name)
	b.WriteString("Combat log:\n")
	for _, line := range r.Log {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("Result: ")
	b.WriteString(resultLine(r))
	return b.String()
}

func resultLine(r *DuelReport) string {
	switch r.Settlement.Outcome {
	case progression.OutcomeChallengerWins, progression.OutcomeTargetWins:
		winner, loser := r.Challenger.Name, r.Target.Name
		if r.Settlement.Outcome == progression.OutcomeTargetWins {
			winner, loser = loser, winner
		}
		switch {
		case r.Settlement.LoserReset:
			return fmt.Sprintf("%s wins. %s falls and loses everything.", winner, loser)
		case r.Settlement.Stolen > 0:
			return fmt.Sprintf("%s wins and takes %s from %s.", winner, goldText(r.Settlement.Stolen), loser)
		default:
			return fmt.Sprintf("%s wins.", winner)
		}
	case progression.OutcomeMutualDefeat:
		return "Both fighters fall. Nobody wins."
	default:
		return "A draw."
	}
}

func staticDuel(r *DuelReport) string {
	return strings.Join(r.Log, "\n") + "\n" + resultLine(r)
}

func profilePrompt(a Actor, v progression.View) string {
	return fmt.Sprintf("Appraise %s in the second person, in character, in two or three sentences. "+
		"They carry %s gold, wield %s, wear %s, and have %d/%d HP. How you feel about them: %s.",
		a.label(), goldText(v.Gold), slot(v.Equip.Weapon), slot(v.Equip.Armor), v.RPG.HP, v.RPG.MaxHP, v.Stage)
}

func staticProfile(a Actor, v progression.View) string {
	return fmt.Sprintf("%s | %s | Gold %s | HP %d/%d | ATK %d DEF %d | weapon %s, armor %s",
		a.label(), v.Stage, goldText(v.Gold), v.RPG.HP, v.RPG.MaxHP, v.RPG.Atk, v.RPG.Def, slot(v.Equip.Weapon), slot(v.Equip.Armor))
}

func cardPrompt(card string) string {
	return "The player just updated their character card to:\n" + card + "\nAcknowledge it in character, in one or two sentences."
}

func summaryPrompt(instruction string) string {
	if instruction = strings.TrimSpace(instruction); instruction == "" {
		return defaultSummaryInstruction
	}
	return instruction
}
