package broken

type Invoice struct {
	Number string
}

func (i *Invoice) Title() string { return i.Number }

func (i *Invoice) HideNmuber() bool { return false }
