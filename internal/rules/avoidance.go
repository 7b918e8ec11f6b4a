package rules

import (
	"fmt"
	"strings"

	"github.com/Veraticus/clawback/internal/model"
)

// Lookback lengths in days.
const (
	oneMonth    = 30
	threeMonths = 90
	sixMonths   = 180
	oneYear     = 365
	fourYears   = 1460
)

// largeOutflow is the amount from which an outflow close to the anchor counts as a signal.
const largeOutflow = 10000.0

func daysText(w window) string {
	if !w.hasAnchor {
		return "?"
	}
	return fmt.Sprint(w.daysBefore)
}

// congruentRule covers §130: satisfaction the creditor was entitled to,
// made in the three months before the petition.
type congruentRule struct{}

func (congruentRule) ID() string { return RuleCongruent }

func (congruentRule) Evaluate(txn *model.Transaction, c *model.Case, cp *model.Counterparty) model.RuleEvaluation {
	w := lookback(c.PetitionAnchor(), txn.BookingDate, threeMonths)
	lastMonth := lookback(c.PetitionAnchor(), txn.BookingDate, oneMonth)
	var s score

	if w.inside {
		s.hit("in_lookback_3m", model.ConditionYes, fmt.Sprintf("%d days before petition", w.daysBefore), 0.3)
	} else {
		s.miss("in_lookback_3m", model.ConditionNo)
	}

	s.hit("debtor_illiquidity", model.ConditionAssumed, "Insolvency case exists, illiquidity assumed", 0.15)
	s.absent = append(s.absent, "Independent illiquidity assessment")

	if hits := matchKeywords(txn.Description(), crisisKeywords); len(hits) > 0 {
		s.hit("creditor_knowledge_indicators", model.ConditionYes, "Keywords: "+strings.Join(hits, ", "), 0.2)
		s.present = append(s.present, "Crisis indicators in description: "+strings.Join(hits, ", "))
	} else {
		s.miss("creditor_knowledge", model.ConditionUnknown)
		s.absent = append(s.absent, "Evidence of creditor knowledge")
	}

	related := cp.IsRelatedParty()
	if related {
		s.hit("related_party_knowledge_presumed", model.ConditionYes, "Related party: "+cp.Name, 0.25)
		s.present = append(s.present, "Related party confirmed for "+cp.Name)
	}

	s.met = append(s.met, model.Condition{Name: "congruent_performance", Met: model.ConditionAssumed, Detail: "Standard payment, congruent assumed"})

	knowledge := "Creditor knowledge needs proof."
	if related {
		knowledge = "Related party, knowledge presumed."
	}
	basis := "InsO §130 Abs. 1 S. 1 Nr. 2"
	if w.inside && !lastMonth.inside {
		basis = "InsO §130 Abs. 1 S. 1 Nr. 1"
	}
	explanation := fmt.Sprintf("§130 Congruent satisfaction. Transaction %s days before petition. %s", daysText(w), knowledge)
	return s.result(w, 0.45, basis, explanation)
}

// incongruentRule covers §131: satisfaction the creditor could not demand
// in that form or at that time. The last month before the petition is stricter.
type incongruentRule struct{}

func (incongruentRule) ID() string { return RuleIncongruent }

func (incongruentRule) Evaluate(txn *model.Transaction, c *model.Case, _ *model.Counterparty) model.RuleEvaluation {
	anchor := c.PetitionAnchor()
	oneM := lookback(anchor, txn.BookingDate, oneMonth)
	threeM := lookback(anchor, txn.BookingDate, threeMonths)
	var s score

	w, threshold := threeM, 0.5
	switch {
	case oneM.inside:
		w, threshold = oneM, 0.35
		s.hit("in_lookback_1m", model.ConditionYes, fmt.Sprintf("%d days before petition", oneM.daysBefore), 0.35)
	case threeM.inside:
		s.hit("in_lookback_3m", model.ConditionYes, fmt.Sprintf("%d days before petition", threeM.daysBefore), 0.2)
	default:
		s.miss("in_lookback", model.ConditionNo)
	}

	desc := txn.Description()
	enforcement := matchKeywords(desc, enforcementKeywords)
	if len(enforcement) > 0 {
		s.hit("enforcement_pressure", model.ConditionYes, "Keywords: "+strings.Join(enforcement, ", "), 0.3)
		s.present = append(s.present, "Enforcement indicators: "+strings.Join(enforcement, ", "))
	}
	if len(unusualPaymentMethod(desc)) > 0 {
		s.hit("unusual_payment_method", model.ConditionYes, "", 0.2)
		s.present = append(s.present, "Unusual payment method detected")
	}
	if len(enforcement) == 0 {
		s.absent = append(s.absent, "Evidence of incongruence: enforcement, unusual method, premature payment")
	}

	windowText := "Within 3-month window."
	basis := "InsO §131 Abs. 1 Nr. 2/3"
	if oneM.inside {
		windowText = "Within 1-month strict window."
		basis = "InsO §131 Abs. 1 Nr. 1"
	} else if !threeM.inside {
		windowText = "Outside lookback window."
	}
	pressure := "No clear incongruence indicators found."
	if len(enforcement) > 0 {
		pressure = "Enforcement pressure detected."
	}
	return s.result(w, threshold, basis, "§131 Incongruent satisfaction. "+windowText+" "+pressure)
}

// prejudicialRule covers §132: outflows without equivalent consideration.
type prejudicialRule struct{}

func (prejudicialRule) ID() string { return RulePrejudicial }

func (prejudicialRule) Evaluate(txn *model.Transaction, c *model.Case, _ *model.Counterparty) model.RuleEvaluation {
	w := lookback(c.PetitionAnchor(), txn.BookingDate, threeMonths)
	var s score

	if w.inside {
		s.hit("in_3_month_window", model.ConditionYes, "", 0.3)
	} else {
		s.miss("in_3_month_window", model.ConditionNo)
	}

	outflow := txn.Direction() == model.DirectionOutflow
	hits := matchKeywords(txn.Description(), prejudiceKeywords)
	switch {
	case outflow && len(hits) > 0:
		s.hit("direct_prejudice_indicator", model.ConditionYes, "Keywords: "+strings.Join(hits, ", "), 0.4)
		s.present = append(s.present, "Description signals payment without consideration")
	case outflow:
		s.miss("direct_prejudice_indicator", model.ConditionUnknown)
		s.absent = append(s.absent, "Proof of missing equivalent benefit")
	}

	return s.result(w, 0.7, "InsO §132", explain(RulePrejudicial, w, &s, 0.7))
}

// intentionalRule covers §133: intentional prejudice of creditors within four years.
type intentionalRule struct{}

func (intentionalRule) ID() string { return RuleIntentional }

func (intentionalRule) Evaluate(txn *model.Transaction, c *model.Case, cp *model.Counterparty) model.RuleEvaluation {
	anchor := c.PetitionAnchor()
	w := lookback(anchor, txn.BookingDate, fourYears)
	var s score

	if w.inside {
		s.hit("in_4_year_window", model.ConditionYes, "", 0.2)
	} else {
		s.miss("in_4_year_window", model.ConditionNo)
	}

	if hasAnyTag(txn, crisisTags) {
		s.hit("crisis_signal", model.ConditionYes, "", 0.2)
		s.present = append(s.present, "Crisis tag on transaction")
	}

	switch {
	case cp.IsRelatedParty():
		s.hit("related_party", model.ConditionYes, cp.Name, 0.3)
		s.present = append(s.present, "Counterparty is a related party")
	case cp != nil && cp.Role.IsRelated():
		s.hit("related_party_role", model.ConditionYes, string(cp.Role), 0.25)
		s.present = append(s.present, "Counterparty role "+string(cp.Role))
	}

	if txn.Amount <= -largeOutflow && lookback(anchor, txn.BookingDate, sixMonths).inside {
		s.hit("large_payment_close_to_anchor", model.ConditionYes, model.FormatAmount(txn.Amount), 0.2)
	}

	return s.result(w, 0.75, "InsO §133", explain(RuleIntentional, w, &s, 0.75))
}

// gratuitousRule covers §134: gratuitous performance within four years before opening.
type gratuitousRule struct{}

func (gratuitousRule) ID() string { return RuleGratuitous }

func (gratuitousRule) Evaluate(txn *model.Transaction, c *model.Case, _ *model.Counterparty) model.RuleEvaluation {
	w := lookback(c.OpeningAnchor(), txn.BookingDate, fourYears)
	var s score

	if w.inside {
		s.hit("in_lookback_4y", model.ConditionYes, "", 0.25)
	} else {
		s.miss("in_lookback_4y", model.ConditionNo)
	}

	if hits := matchKeywords(txn.Description(), gratuitousKeywords); len(hits) > 0 {
		s.hit("gratuitous_indicators", model.ConditionYes, "Keywords: "+strings.Join(hits, ", "), 0.5)
		s.present = append(s.present, "Gratuitous indicators: "+strings.Join(hits, ", "))
	} else {
		s.miss("gratuitous", model.ConditionUnknown)
		s.absent = append(s.absent, "Evidence of lack of consideration")
	}

	return s.result(w, 0.55, "InsO §134 Abs. 1", "§134 Gratuitous performance heuristic based on description keywords.")
}

// shareholderLoanRule covers §135: repayment of shareholder loans within one year.
type shareholderLoanRule struct{}

func (shareholderLoanRule) ID() string { return RuleShareholderLn }

func (shareholderLoanRule) Evaluate(txn *model.Transaction, c *model.Case, cp *model.Counterparty) model.RuleEvaluation {
	w := lookback(c.PetitionAnchor(), txn.BookingDate, oneYear)
	var s score

	if w.inside {
		s.hit("in_lookback_1y", model.ConditionYes, "", 0.2)
	} else {
		s.miss("in_lookback_1y", model.ConditionNo)
	}

	hits := matchKeywords(txn.Description(), shareholderLoanKeywords)
	if len(hits) > 0 {
		s.hit("shareholder_loan_keywords", model.ConditionYes, "Keywords: "+strings.Join(hits, ", "), 0.4)
		s.present = append(s.present, "Shareholder loan indicators: "+strings.Join(hits, ", "))
	} else {
		s.absent = append(s.absent, "Loan agreement or other evidence of a shareholder loan")
	}

	if cp.IsRelatedParty() {
		s.hit("related_party", model.ConditionYes, cp.Name, 0.25)
	}

	return s.result(w, 0.55, "InsO §135 Abs. 1 Nr. 2", "§135 Shareholder loan repayment heuristic (keywords and related party).")
}

// explain renders a compact decision summary for rules without a narrative text.
func explain(ruleID string, w window, s *score, threshold float64) string {
	conf := s.value()
	parts := []string{fmt.Sprintf("%s decision=%s confidence=%.3f", ruleID, decide(w.inside, conf, threshold), conf)}
	if names := conditionNames(s.met); names != "" {
		parts = append(parts, "met="+names)
	}
	if names := conditionNames(s.missing); names != "" {
		parts = append(parts, "missing="+names)
	}
	if len(s.absent) > 0 {
		parts = append(parts, "evidence_missing="+strings.Join(s.absent, ", "))
	}
	return strings.Join(parts, "; ")
}

func conditionNames(conds []model.Condition) string {
	names := make([]string, len(conds))
	for i, c := range conds {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
