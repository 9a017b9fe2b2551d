package leetcode

const (
	queryDaily = `query questionOfToday {
  activeDailyCodingChallengeQuestion {
    date
    question { title titleSlug questionId: questionFrontendId difficulty isPaidOnly }
  }
}`

	queryProblemset = `query problemsetQuestionList($categorySlug: String, $limit: Int, $skip: Int, $filters: QuestionListFilterInput) {
  problemsetQuestionList: questionList(categorySlug: $categorySlug, limit: $limit, skip: $skip, filters: $filters) {
    total: totalNum
    questions: data { title titleSlug questionId: questionFrontendId difficulty isPaidOnly }
  }
}`

	queryUserStats = `query userStats($username: String!) {
  matchedUser(username: $username) {
    submitStats: submitStatsGlobal {
      acSubmissionNum { difficulty count submissions }
    }
  }
}`
)

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

// question is shared by both lookups. QuestionID is always the frontend
// number shown on the site, never the internal id.
type question struct {
	Title      string `json:"title"`
	TitleSlug  string `json:"titleSlug"`
	QuestionID string `json:"questionId"`
	Difficulty string `json:"difficulty"`
	IsPaidOnly bool   `json:"isPaidOnly"`
}

type dailyResponse struct {
	Data struct {
		Active *struct {
			Date     string    `json:"date"`
			Question *question `json:"question"`
		} `json:"activeDailyCodingChallengeQuestion"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

type problemsetResponse struct {
	Data struct {
		List *struct {
			Total     int        `json:"total"`
			Questions []question `json:"questions"`
		} `json:"problemsetQuestionList"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

type acBucket struct {
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Submissions int    `json:"submissions"`
}

type userStatsResponse struct {
	Data struct {
		MatchedUser *struct {
			SubmitStats struct {
				AC []acBucket `json:"acSubmissionNum"`
			} `json:"submitStats"`
		} `json:"matchedUser"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}
