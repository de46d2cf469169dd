package hotkey

type Fake struct {
	toggles chan struct{}
	show    chan struct{}
}

func NewFake() *Fake {
	return &Fake{
		toggles: make(chan struct{}, 1),
		show:    make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error { return nil }
func (f *Fake) Unregister() {}
func (f *Fake) Toggles() <-chan struct{} { return f.toggles }
func (f *Fake) ShowWindow() <-chan struct{} { return f.show }

func (f *Fake) SimToggle() { f.toggles <- struct{}{} }
func (f *Fake) SimShow() { f.show <- struct{}{} }
