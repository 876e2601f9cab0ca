package cpu

// Stack is a bounded data stack. Limit is fixed when the program is loaded.
type Stack struct {
	Limit int
	Data  []uint32
}

// NewStack creates an empty stack holding at most limit entries.
func NewStack(limit int) *Stack {
	return &Stack{
		Limit: limit,
		Data:  make([]uint32, 0, limit),
	}
}

func (s *Stack) Push(value uint32) (err error) {
	if s.Full() {
		err = ErrStackFull
		return
	}

	s.Data = append(s.Data, value)
	return
}

func (s *Stack) Pop() (value uint32, err error) {
	value, err = s.Peek()
	if err == nil {
		s.Data = s.Data[:len(s.Data)-1]
	}
	return
}

func (s *Stack) Peek() (value uint32, err error) {
	if s.Empty() {
		err = ErrStackEmpty
		return
	}

	return s.Data[len(s.Data)-1], nil
}

func (s *Stack) Empty() bool {
	return len(s.Data) == 0
}

func (s *Stack) Full() bool {
	return len(s.Data) >= s.Limit
}

func (s *Stack) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}
