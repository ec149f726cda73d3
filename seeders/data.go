package seeders

var usersData = []struct {
	FIO  string
	Role string
}{
	{FIO: "Андрей Супервайзер", Role: "SUPERVISOR"},
	{FIO: "Администратор системы", Role: "ADMIN"},
	{FIO: "Анна Менеджер", Role: "MANAGER"},
	{FIO: "Борис Менеджер", Role: "MANAGER"},
	{FIO: "Карина Менеджер", Role: "MANAGER"},
}

var equipmentsData = []struct {
	Name             string
	ExternalID       string
	MovementLocation string
	Specs            string
}{
	{Name: "Экскаватор CAT 320", ExternalID: "CAT320-0001", MovementLocation: "Склад Гуаякиль", Specs: "20 т, ковш 1.2 м3"},
	{Name: "Экскаватор CAT 320", ExternalID: "CAT320-0002", MovementLocation: "В пути", Specs: "20 т, ковш 1.2 м3"},
	{Name: "Погрузчик CAT 950", ExternalID: "CAT950-0001", MovementLocation: "Склад Кито", Specs: "ковш 3.1 м3"},
	{Name: "Бульдозер CAT D6", ExternalID: "CATD6-0001", MovementLocation: "Порт", Specs: "отвал SU"},
	{Name: "Мини-экскаватор CAT 305", ExternalID: "CAT305-0001", MovementLocation: "Склад Гуаякиль", Specs: "5 т"},
}
