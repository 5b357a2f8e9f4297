package assistant

// Keyword sets are lower-case; see containsAny for how they match.
var (
	taskRelatedKeywords = []string{
		"task", "deadline", "due", "today", "tomorrow", "overdue", "urgent", "upcoming", "schedule",
		"কাজ", "টাস্ক", "ডেডলাইন", "আজ", "আগামীকাল",
	}

	addTaskKeywords = []string{
		"add task", "add a task", "new task", "create task", "create a task", "add new",
		"কাজ যোগ", "নতুন কাজ", "টাস্ক যোগ", "যোগ কর",
	}

	refreshKeywords = []string{
		"refresh", "reload", "sync", "update list",
		"রিফ্রেশ", "আপডেট",
	}

	todayKeywords = []string{
		"today", "tonight", "aaj",
		"আজ",
	}

	tomorrowKeywords = []string{
		"tomorrow", "agamikal",
		"আগামীকাল",
	}

	overdueKeywords = []string{
		"overdue", "late", "missed", "past due",
		"দেরি", "মিস",
	}

	allKeywords = []string{
		"all task", "my task", "task list", "show task", "list",
		"সব কাজ", "আমার কাজ", "কাজের তালিকা", "তালিকা",
	}

	weekKeywords = []string{
		"week", "upcoming", "next 7 days",
		"সপ্তাহ", "আসন্ন",
	}

	urgentKeywords = []string{
		"urgent", "priority", "important", "asap",
		"জরুরি", "গুরুত্বপূর্ণ",
	}
)

// categoryKeywords is ordered so that "homework" resolves to Academic before "work" is tried.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{name: "Academic", keywords: []string{"academic", "study", "homework", "assignment", "একাডেমিক", "পড়াশোনা"}},
	{name: "Personal", keywords: []string{"personal", "ব্যক্তিগত", "নিজের"}},
	{name: "Work", keywords: []string{"work", "office", "job", "অফিস", "চাকরি"}},
}

func matchCategory(text string) (string, bool) {
	for _, c := range categoryKeywords {
		if containsAny(text, c.keywords) {
			return c.name, true
		}
	}
	return "", false
}
