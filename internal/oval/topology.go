package oval

// FaceOval is the face-oval contour of the 478-point face mesh, as an
// unordered set of undirected edges.
var FaceOval = []Edge{
	{10, 338}, {338, 297}, {297, 332}, {332, 284},
	{284, 251}, {251, 389}, {389, 356}, {356, 454},
	{454, 323}, {323, 361}, {361, 288}, {288, 397},
	{397, 365}, {365, 379}, {379, 378}, {378, 400},
	{400, 377}, {377, 152}, {152, 148}, {148, 176},
	{176, 149}, {149, 150}, {150, 136}, {136, 172},
	{172, 58}, {58, 132}, {132, 93}, {93, 234},
	{234, 127}, {127, 162}, {162, 21}, {21, 54},
	{54, 103}, {103, 67}, {67, 109}, {109, 10},
}
