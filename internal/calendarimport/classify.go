package calendarimport

import (
	"regexp"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

var (
	// 课程代码（如 CSE 1310）或 lecture / seminar / class / course
	classTitlePattern = regexp.MustCompile(`(?i)\b[a-z]{2,4}\s?\d{3,4}\b|\b(lectures?|seminars?|class(es)?|courses?)\b`)
	// 星期缩写加时间的前缀，如 "MWF 10:00"、"TTh 9:30"
	classMeetingPattern  = regexp.MustCompile(`(?i)\b(m|tu?|w|th|r|f)+\s+\d{1,2}:\d{2}`)
	classLocationPattern = regexp.MustCompile(`(?i)\b(halls?|rooms?|buildings?)\b`)

	examPattern       = regexp.MustCompile(`(?i)\b(exams?|examination|finals?|midterms?)\b`)
	quizPattern       = regexp.MustCompile(`(?i)\b(quiz(zes)?|tests?|assessments?)\b`)
	assignmentPattern = regexp.MustCompile(`(?i)\b(assignments?|homework|projects?|reports?|papers?|due|deadlines?)\b`)
	duePattern        = regexp.MustCompile(`(?i)\b(due|deadlines?)\b`)
	labPattern        = regexp.MustCompile(`(?i)\b(labs?|laborator(y|ies)|practicals?)\b`)
)

// 评分顺序同时也是平分时的优先顺序
var bucketOrder = []domain.EventType{
	domain.EventTypeClass,
	domain.EventTypeExam,
	domain.EventTypeQuiz,
	domain.EventTypeAssignment,
	domain.EventTypeLab,
}

const (
	titleWeight       = 5
	descriptionWeight = 3
	scoreSaturation   = 10
)

// textScore 标题命中 +5，描述命中 +3
func textScore(p *regexp.Regexp, title, description string) int {
	score := 0
	if p.MatchString(title) {
		score += titleWeight
	}
	if p.MatchString(description) {
		score += descriptionWeight
	}
	return score
}

func scoreOccurrence(o domain.Occurrence) map[domain.EventType]int {
	scores := make(map[domain.EventType]int, len(bucketOrder))

	class := 0
	if classTitlePattern.MatchString(o.Title) {
		class += 5
	}
	if classMeetingPattern.MatchString(o.Title) {
		class += 3
	}
	if o.IsRecurring {
		class += 3
	}
	if classLocationPattern.MatchString(o.Location) {
		class += 2
	}
	scores[domain.EventTypeClass] = class

	// 单次事件的 +2 只用来加强已经有文本信号的类别，
	// 否则任何单次事件都会被判成考试
	exam := textScore(examPattern, o.Title, o.Description)
	if exam > 0 && !o.IsRecurring {
		exam += 2
	}
	scores[domain.EventTypeExam] = exam

	quiz := textScore(quizPattern, o.Title, o.Description)
	if quiz > 0 && !o.IsRecurring {
		quiz += 2
	}
	scores[domain.EventTypeQuiz] = quiz

	assignment := textScore(assignmentPattern, o.Title, o.Description)
	if duePattern.MatchString(o.Title) {
		assignment += 2
	}
	scores[domain.EventTypeAssignment] = assignment

	lab := textScore(labPattern, o.Title, o.Description)
	if labPattern.MatchString(o.Location) {
		lab += 2
	}
	scores[domain.EventTypeLab] = lab

	return scores
}

// Classify 根据标题、描述和地点给实例打分，得分最高的类别胜出。
// 全部为 0 时返回 other，置信度 0。
func Classify(o domain.Occurrence) domain.Classification {
	scores := scoreOccurrence(o)

	best := domain.EventTypeOther
	bestScore := 0
	for _, t := range bucketOrder {
		if scores[t] > bestScore {
			best = t
			bestScore = scores[t]
		}
	}

	return domain.Classification{
		Type:       best,
		Confidence: min(100, bestScore*100/scoreSaturation),
	}
}
