package orchestrator

// #region action-for

// actionFor maps a thought onto the operation the loop will execute.
func actionFor(th Thought) Action {
	switch th.Action {
	case ThoughtAskQuestion:
		return GenerateQuestion{}
	case ThoughtClarifyAnswer:
		return GenerateQuestion{Clarify: true}
	case ThoughtUseTool:
		return UpdateScores{}
	case ThoughtMakeRecommendation:
		return Recommend{}
	case ThoughtReflect:
		return AnalyzeGap{}
	}
	// Decode validates the action; anything else asks the next question.
	return GenerateQuestion{}
}

// #endregion
