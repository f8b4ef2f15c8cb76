package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateEmailLocalPart 名字转拼音后取每个字的前几个字母，再拼上随机数字
func GenerateEmailLocalPart(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	local := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		local += py[:length]
	}

	digitsLength := rand.Intn(3) + 2
	for i := 0; i < digitsLength; i++ {
		local += string(digits[rand.Intn(len(digits))])
	}

	return local
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        GenerateEmailLocalPart(fullName) + "@" + emailDomainName,
	}

	return user, nil
}

var subjects = []string{"CSE", "MATH", "PHYS", "CHEM", "BIOL", "ENGL", "HIST", "ECON"}
var buildings = []string{"Nedderman Hall", "Pickard Hall", "Science Hall", "Life Science Building", "Woolf Hall"}

// 课程常见的上课日组合
var meetingPatterns = [][]domain.Weekday{
	{domain.Monday, domain.Wednesday, domain.Friday},
	{domain.Tuesday, domain.Thursday},
	{domain.Monday, domain.Wednesday},
	{domain.Wednesday},
}

// GenerateRandomWeeklySchedule 生成若干门互不冲突的课程，每门课在固定的时间段上课
func GenerateRandomWeeklySchedule(courses int) domain.WeeklySchedule {
	ws := domain.NewWeeklySchedule()

	// 时间段间隔两小时，每个时间段只排一门课，保证不会冲突
	slots := rand.Perm(5)
	if courses > len(slots) {
		courses = len(slots)
	}

	for i := 0; i < courses; i++ {
		startHour := 8 + 2*slots[i] // 8 AM ~ 4 PM
		duration := 50
		pattern := meetingPatterns[rand.Intn(len(meetingPatterns))]
		if len(pattern) == 2 {
			duration = 80
		}

		entry := domain.ScheduleEntry{
			ClassName: fmt.Sprintf("%s %d", subjects[rand.Intn(len(subjects))], 1000+rand.Intn(4000)),
			Location:  fmt.Sprintf("%s %d", buildings[rand.Intn(len(buildings))], 100+rand.Intn(300)),
			StartTime: formatClock(startHour, 0),
			EndTime:   formatClock(startHour+duration/60, duration%60),
		}

		for _, day := range pattern {
			ws[day] = append(ws[day], entry)
		}
	}

	for _, day := range domain.WorkWeek {
		domain.SortEntries(ws[day])
	}

	return ws
}

// formatClock 把 24 小时制的时分转成 "3:04 PM" 格式
func formatClock(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}
