package clientmqtt

type MQTTConf struct {
	ClientID    string // ClientID - уникальное имя клиента для брокеров.
	Schema      string // Schema - тип подключения.
	Host        string // Host - адрес MQTT сервера.
	Port        string // Port - порт MQTT сервера.
	User        string // User - логин для подключения к MQTT серверу.
	Password    string // Password - пароль для подключения к MQTT серверу.
	Qos         byte   // Qos - качество обслуживания.
	TopicPrefix string // TopicPrefix - префикс топиков.
}

// FramePayload is the JSON published for every shown frame.
type FramePayload struct {
	Controller string     `json:"controller"`
	Seq        uint64     `json:"seq"`
	Brightness uint8      `json:"brightness"`
	Pixels     [][3]uint8 `json:"pixels"`
}

// StatusPayload is the JSON published when the agent changes phase.
type StatusPayload struct {
	Controller string `json:"controller"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
}
